package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

// memTx runs with Store.mu write-locked. Every mutation pushes its inverse
// onto undo so a failed unit of work leaves no trace.
type memTx struct {
	s    *Store
	undo []func()
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &p, nil
}

func (t *memTx) InsertProduct(_ context.Context, product domain.Product) error {
	sku := strings.TrimSpace(product.SKU)
	if product.ID == "" || sku == "" {
		return fmt.Errorf("%w: product id and sku are required", store.ErrInvalidInput)
	}
	if _, exists := t.s.productBySKU[sku]; exists {
		return fmt.Errorf("product sku %s: %w", sku, store.ErrDuplicate)
	}
	t.s.products[product.ID] = product
	t.s.productBySKU[sku] = product.ID
	t.undo = append(t.undo, func() {
		delete(t.s.products, product.ID)
		delete(t.s.productBySKU, sku)
	})
	return nil
}

func (t *memTx) SetProductStock(_ context.Context, id string, qty int, at time.Time) error {
	p, ok := t.s.products[id]
	if !ok {
		return store.ErrProductNotFound
	}
	if qty < 0 {
		return fmt.Errorf("%w: stock cannot be negative", store.ErrInvalidInput)
	}
	prev := p
	p.StockQuantity = qty
	p.UpdatedAt = at
	t.s.products[id] = p
	t.undo = append(t.undo, func() { t.s.products[id] = prev })
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, movement domain.InventoryMovement) error {
	n := len(t.s.movements)
	t.s.movements = append(t.s.movements, movement)
	t.undo = append(t.undo, func() { t.s.movements = t.s.movements[:n] })
	return nil
}

func (t *memTx) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	return &c, nil
}

func (t *memTx) AddLoyaltyPoints(_ context.Context, customerID string, delta int64) (int64, error) {
	c, ok := t.s.customers[customerID]
	if !ok {
		return 0, store.ErrCustomerNotFound
	}
	prev := c
	c.LoyaltyPoints += delta
	if c.LoyaltyPoints < 0 {
		c.LoyaltyPoints = 0
	}
	t.s.customers[customerID] = c
	t.undo = append(t.undo, func() { t.s.customers[customerID] = prev })
	return c.LoyaltyPoints, nil
}

func (t *memTx) GetPromotionByCode(_ context.Context, code string) (*domain.Promotion, error) {
	return t.s.promotionByCodeLocked(code)
}

func (t *memTx) IncrementPromotionUsage(_ context.Context, id string) (bool, error) {
	p, ok := t.s.promotions[id]
	if !ok {
		return false, store.ErrPromotionNotFound
	}
	if !domain.PromotionHasUsageLeft(p) {
		return false, nil
	}
	prevCount := p.UsageCount
	p.UsageCount++
	t.s.promotions[id] = p
	t.undo = append(t.undo, func() {
		restored := t.s.promotions[id]
		restored.UsageCount = prevCount
		t.s.promotions[id] = restored
	})
	return true, nil
}

func (t *memTx) LastTransactionNumber(_ context.Context, prefix string) (string, error) {
	return t.s.lastNumberLocked(prefix), nil
}

func (t *memTx) InsertSale(_ context.Context, sale domain.Sale) error {
	if _, exists := t.s.saleByNumber[sale.TransactionNumber]; exists {
		return fmt.Errorf("sale %s: %w", sale.TransactionNumber, store.ErrTransactionNumberConflict)
	}
	key := strings.TrimSpace(sale.IdempotencyKey)
	if key != "" {
		if _, exists := t.s.saleByIdem[key]; exists {
			return fmt.Errorf("idempotency key %s: %w", key, store.ErrDuplicate)
		}
	}

	sale.Items = nil
	sale.Customer = nil
	sale.Cancellation = nil
	t.s.sales[sale.ID] = sale
	t.s.saleByNumber[sale.TransactionNumber] = sale.ID
	if key != "" {
		t.s.saleByIdem[key] = sale.ID
	}
	t.undo = append(t.undo, func() {
		delete(t.s.sales, sale.ID)
		delete(t.s.saleByNumber, sale.TransactionNumber)
		if key != "" {
			delete(t.s.saleByIdem, key)
		}
	})
	return nil
}

func (t *memTx) InsertSaleItems(_ context.Context, items []domain.SaleItem) error {
	for _, item := range items {
		if _, ok := t.s.sales[item.SaleID]; !ok {
			return store.ErrSaleNotFound
		}
	}
	touched := make(map[string][]domain.SaleItem)
	for _, item := range items {
		if _, seen := touched[item.SaleID]; !seen {
			touched[item.SaleID] = t.s.saleItems[item.SaleID]
		}
		t.s.saleItems[item.SaleID] = append(t.s.saleItems[item.SaleID], item)
	}
	t.undo = append(t.undo, func() {
		for saleID, prev := range touched {
			if prev == nil {
				delete(t.s.saleItems, saleID)
				continue
			}
			t.s.saleItems[saleID] = prev
		}
	})
	return nil
}

func (t *memTx) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	return t.s.saleLocked(id)
}

func (t *memTx) InsertCancellation(_ context.Context, cancellation domain.SaleCancellation) error {
	if _, ok := t.s.sales[cancellation.SaleID]; !ok {
		return store.ErrSaleNotFound
	}
	if _, exists := t.s.cancellations[cancellation.SaleID]; exists {
		return store.ErrSaleAlreadyCancelled
	}
	t.s.cancellations[cancellation.SaleID] = cancellation
	t.undo = append(t.undo, func() { delete(t.s.cancellations, cancellation.SaleID) })
	return nil
}
