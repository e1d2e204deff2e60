// Package ledger owns every write to a product's stock quantity. Each write
// lands together with exactly one inventory movement inside the caller's
// unit of work.
package ledger

import (
	"context"
	"fmt"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
	"kasirpos/backend/internal/xid"
)

type Movement struct {
	ProductID string
	Type      string
	Quantity  int
	// NewStock is the counted quantity for adjustment movements.
	NewStock      int
	ReferenceType string
	ReferenceID   string
	Notes         string
	ActorID       string
}

// ReserveAndCommit locks the product, checks availability for stock_out,
// writes the new quantity and appends the movement. Nothing is committed
// until tx commits.
func ReserveAndCommit(ctx context.Context, tx store.Tx, m Movement, now time.Time) (domain.InventoryMovement, error) {
	product, err := tx.LockProduct(ctx, m.ProductID)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.InventoryMovement{}, &store.ProductNotFoundError{ProductID: m.ProductID}
		}
		return domain.InventoryMovement{}, err
	}

	next, quantity, err := nextStock(product, m)
	if err != nil {
		return domain.InventoryMovement{}, err
	}

	if err := tx.SetProductStock(ctx, product.ID, next, now); err != nil {
		return domain.InventoryMovement{}, err
	}

	movement := domain.InventoryMovement{
		ID:            xid.New("mov"),
		ProductID:     product.ID,
		Type:          m.Type,
		Quantity:      quantity,
		PreviousStock: product.StockQuantity,
		NewStock:      next,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
		ActorID:       m.ActorID,
		CreatedAt:     now,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return domain.InventoryMovement{}, err
	}

	telemetry.StockMovementsTotal.WithLabelValues(m.Type).Inc()
	return movement, nil
}

// nextStock returns the target quantity and the movement quantity. For
// adjustments the movement quantity is the absolute difference.
func nextStock(product *domain.Product, m Movement) (int, int, error) {
	switch m.Type {
	case domain.MovementStockOut:
		if m.Quantity < 1 {
			return 0, 0, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
		}
		if m.Quantity > product.StockQuantity {
			return 0, 0, &store.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: m.Quantity,
				Available: product.StockQuantity,
			}
		}
		return product.StockQuantity - m.Quantity, m.Quantity, nil
	case domain.MovementStockIn:
		if m.Quantity < 1 {
			return 0, 0, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
		}
		return product.StockQuantity + m.Quantity, m.Quantity, nil
	case domain.MovementAdjustment:
		if m.NewStock < 0 {
			return 0, 0, fmt.Errorf("%w: adjusted stock cannot be negative", store.ErrInvalidInput)
		}
		diff := m.NewStock - product.StockQuantity
		if diff < 0 {
			diff = -diff
		}
		return m.NewStock, diff, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown movement type %q", store.ErrInvalidInput, m.Type)
	}
}
