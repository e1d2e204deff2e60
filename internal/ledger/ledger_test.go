package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func seedProduct(t *testing.T, repo *memory.Store, stock int) string {
	t.Helper()
	product := domain.Product{ID: "prd_ledger", SKU: "LED-1", Name: "Ledger Widget", PriceCents: 500, StockQuantity: stock, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertProduct(context.Background(), product)
	}))
	return product.ID
}

func commit(repo *memory.Store, m Movement) (domain.InventoryMovement, error) {
	var out domain.InventoryMovement
	err := repo.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = ReserveAndCommit(context.Background(), tx, m, now)
		return err
	})
	return out, err
}

func TestReserveAndCommitMovementTypes(t *testing.T) {
	tests := []struct {
		name         string
		movement     Movement
		wantStock    int
		wantQuantity int
	}{
		{name: "stock out", movement: Movement{Type: domain.MovementStockOut, Quantity: 4}, wantStock: 6, wantQuantity: 4},
		{name: "stock out everything", movement: Movement{Type: domain.MovementStockOut, Quantity: 10}, wantStock: 0, wantQuantity: 10},
		{name: "stock in", movement: Movement{Type: domain.MovementStockIn, Quantity: 5}, wantStock: 15, wantQuantity: 5},
		{name: "adjust down", movement: Movement{Type: domain.MovementAdjustment, NewStock: 7}, wantStock: 7, wantQuantity: 3},
		{name: "adjust up", movement: Movement{Type: domain.MovementAdjustment, NewStock: 12}, wantStock: 12, wantQuantity: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.New()
			tc.movement.ProductID = seedProduct(t, repo, 10)
			tc.movement.ActorID = "tester"

			m, err := commit(repo, tc.movement)
			require.NoError(t, err)
			assert.Equal(t, 10, m.PreviousStock)
			assert.Equal(t, tc.wantStock, m.NewStock)
			assert.Equal(t, tc.wantQuantity, m.Quantity)
			assert.Equal(t, "tester", m.ActorID)

			product, err := repo.GetProduct(context.Background(), tc.movement.ProductID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStock, product.StockQuantity)

			movements, err := repo.ListMovements(context.Background(), tc.movement.ProductID, 0)
			require.NoError(t, err)
			assert.Len(t, movements, 1)
		})
	}
}

func TestReserveAndCommitRejects(t *testing.T) {
	tests := []struct {
		name     string
		movement Movement
		wantErr  error
	}{
		{name: "oversell", movement: Movement{Type: domain.MovementStockOut, Quantity: 11}, wantErr: store.ErrInsufficientStock},
		{name: "zero out", movement: Movement{Type: domain.MovementStockOut}, wantErr: store.ErrInvalidInput},
		{name: "zero in", movement: Movement{Type: domain.MovementStockIn}, wantErr: store.ErrInvalidInput},
		{name: "negative adjustment", movement: Movement{Type: domain.MovementAdjustment, NewStock: -1}, wantErr: store.ErrInvalidInput},
		{name: "unknown type", movement: Movement{Type: "shrinkage", Quantity: 1}, wantErr: store.ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.New()
			tc.movement.ProductID = seedProduct(t, repo, 10)

			_, err := commit(repo, tc.movement)
			require.ErrorIs(t, err, tc.wantErr)

			product, err := repo.GetProduct(context.Background(), tc.movement.ProductID)
			require.NoError(t, err)
			assert.Equal(t, 10, product.StockQuantity)
			movements, err := repo.ListMovements(context.Background(), tc.movement.ProductID, 0)
			require.NoError(t, err)
			assert.Empty(t, movements)
		})
	}
}

func TestReserveAndCommitUnknownProduct(t *testing.T) {
	_, err := commit(memory.New(), Movement{ProductID: "prd_nope", Type: domain.MovementStockIn, Quantity: 1})
	var notFound *store.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "prd_nope", notFound.ProductID)
	assert.True(t, store.IsNotFound(err))
}
