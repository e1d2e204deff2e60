package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

type txStore struct {
	tx      *sqlx.Tx
	dialect dialect
}

var _ store.Tx = (*txStore)(nil)

// LockProduct takes a row lock on Postgres. SQLite transactions already
// hold the database write lock from BEGIN IMMEDIATE.
func (t *txStore) LockProduct(ctx context.Context, id string) (*domain.Product, error) {
	suffix := ""
	if t.dialect == dialectPostgres {
		suffix = " FOR UPDATE"
	}
	return getProduct(ctx, t.tx, id, suffix)
}

func (t *txStore) InsertProduct(ctx context.Context, product domain.Product) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :sku, :name, :description, :category, :price_cents, :stock_quantity,
			:low_stock_threshold, :active, :created_at, :updated_at)
	`, product)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("product sku %s: %w", product.SKU, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (t *txStore) SetProductStock(ctx context.Context, id string, qty int, at time.Time) error {
	if qty < 0 {
		return fmt.Errorf("%w: stock cannot be negative", store.ErrInvalidInput)
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?
	`), qty, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res, store.ErrProductNotFound)
}

func (t *txStore) InsertMovement(ctx context.Context, movement domain.InventoryMovement) error {
	movement.CreatedAt = movement.CreatedAt.UTC()
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO inventory_movements (`+movementColumns+`)
		VALUES (:id, :product_id, :type, :quantity, :previous_stock, :new_stock, :reference_type,
			:reference_id, :notes, :actor_id, :created_at)
	`, movement)
	return err
}

func (t *txStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, id)
}

func (t *txStore) AddLoyaltyPoints(ctx context.Context, customerID string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.GetContext(ctx, &balance, t.tx.Rebind(`
		UPDATE customers
		SET loyalty_points = CASE WHEN loyalty_points + ? < 0 THEN 0 ELSE loyalty_points + ? END
		WHERE id = ?
		RETURNING loyalty_points
	`), delta, delta, customerID)
	if err != nil {
		return 0, notFound(err, store.ErrCustomerNotFound)
	}
	return balance, nil
}

func (t *txStore) GetPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	return getPromotionByCode(ctx, t.tx, code)
}

// IncrementPromotionUsage is a conditional update, so two transactions
// racing for the last use cannot both succeed.
func (t *txStore) IncrementPromotionUsage(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE promotions
		SET usage_count = usage_count + 1
		WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)
	`), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	var exists int
	err = t.tx.GetContext(ctx, &exists, t.tx.Rebind(`SELECT 1 FROM promotions WHERE id = ?`), id)
	if err != nil {
		return false, notFound(err, store.ErrPromotionNotFound)
	}
	return false, nil
}

func (t *txStore) LastTransactionNumber(ctx context.Context, prefix string) (string, error) {
	return lastTransactionNumber(ctx, t.tx, prefix)
}

func (t *txStore) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO sales (
			id, transaction_number, customer_id, actor_id, subtotal_cents, discount_cents, tax_cents,
			total_cents, payment_method, amount_paid_cents, change_cents, status, notes, promotion_code,
			loyalty_points_awarded, idempotency_key, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`),
		sale.ID, sale.TransactionNumber, nullIfEmpty(sale.CustomerID), sale.ActorID,
		sale.SubtotalCents, sale.DiscountCents, sale.TaxCents, sale.TotalCents,
		sale.PaymentMethod, sale.AmountPaidCents, sale.ChangeCents, sale.Status, sale.Notes,
		sale.PromotionCode, sale.LoyaltyPointsAwarded, nullIfEmpty(strings.TrimSpace(sale.IdempotencyKey)),
		sale.CreatedAt.UTC(),
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "idempotency_key") {
				return fmt.Errorf("idempotency key %s: %w", sale.IdempotencyKey, store.ErrDuplicate)
			}
			return fmt.Errorf("sale %s: %w", sale.TransactionNumber, store.ErrTransactionNumberConflict)
		}
		return err
	}
	return nil
}

func (t *txStore) InsertSaleItems(ctx context.Context, items []domain.SaleItem) error {
	for _, item := range items {
		_, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, sku, quantity, unit_price_cents, discount_cents, total_price_cents)
			VALUES (:id, :sale_id, :product_id, :product_name, :sku, :quantity, :unit_price_cents, :discount_cents, :total_price_cents)
		`, item)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txStore) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(ctx, t.tx, "s.id = ?", id)
}

func (t *txStore) InsertCancellation(ctx context.Context, cancellation domain.SaleCancellation) error {
	cancellation.CreatedAt = cancellation.CreatedAt.UTC()
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO sale_cancellations (sale_id, reason, actor_id, created_at)
		VALUES (:sale_id, :reason, :actor_id, :created_at)
	`, cancellation)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return store.ErrSaleAlreadyCancelled
		}
		return err
	}
	return nil
}

func requireRow(res sql.Result, sentinel error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel
	}
	return nil
}
