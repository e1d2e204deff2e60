package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func TestNewSeededLoadsDemoCatalog(t *testing.T) {
	ctx := context.Background()
	s, err := NewSeeded()
	require.NoError(t, err)

	products, err := s.ListProducts(ctx, store.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 8)

	low, err := s.ListProducts(ctx, store.ProductFilter{LowStockOnly: true})
	require.NoError(t, err)
	for _, p := range low {
		assert.True(t, domain.ProductLowStock(p), p.SKU)
	}
	assert.NotEmpty(t, low)

	promo, err := s.GetPromotionByCode(ctx, "newyear2024")
	require.NoError(t, err)
	assert.Equal(t, domain.PromotionPercentage, promo.Type)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Ahmad", LoyaltyPoints: 10})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, domain.Product{ID: "prd_1", SKU: "A", Name: "A", StockQuantity: 3, Active: true}); err != nil {
			return err
		}
		if err := tx.SetProductStock(ctx, "prd_1", 1, now); err != nil {
			return err
		}
		if _, err := tx.AddLoyaltyPoints(ctx, customer.ID, 5); err != nil {
			return err
		}
		if err := tx.InsertSale(ctx, domain.Sale{ID: "sal_1", TransactionNumber: "TXN-20240315-0001", IdempotencyKey: "k1", CreatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetProduct(ctx, "prd_1")
	assert.ErrorIs(t, err, store.ErrProductNotFound)
	c, err := s.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, c.LoyaltyPoints)
	_, err = s.GetSaleByIdempotencyKey(ctx, "k1")
	assert.ErrorIs(t, err, store.ErrSaleNotFound)
	last, err := s.LastTransactionNumber(ctx, "TXN-20240315-")
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			_ = tx.InsertProduct(ctx, domain.Product{ID: "prd_1", SKU: "A", Name: "A", Active: true})
			panic("midway")
		})
	})
	_, err := s.GetProduct(ctx, "prd_1")
	assert.ErrorIs(t, err, store.ErrProductNotFound)

	// The lock was released.
	require.NoError(t, s.WithTx(ctx, func(store.Tx) error { return nil }))
}

func TestInsertSaleConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSale(ctx, domain.Sale{ID: "sal_1", TransactionNumber: "TXN-20240315-0001", IdempotencyKey: "k1", CreatedAt: now})
	}))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSale(ctx, domain.Sale{ID: "sal_2", TransactionNumber: "TXN-20240315-0001", CreatedAt: now})
	})
	assert.ErrorIs(t, err, store.ErrTransactionNumberConflict)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertSale(ctx, domain.Sale{ID: "sal_3", TransactionNumber: "TXN-20240315-0002", IdempotencyKey: "k1", CreatedAt: now})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestLastTransactionNumberOrdersByLength(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i, number := range []string{"TXN-20240315-9999", "TXN-20240315-10000", "TXN-20240315-0002"} {
			sale := domain.Sale{ID: string(rune('a' + i)), TransactionNumber: number, CreatedAt: now}
			if err := tx.InsertSale(ctx, sale); err != nil {
				return err
			}
		}
		return nil
	}))

	last, err := s.LastTransactionNumber(ctx, "TXN-20240315-")
	require.NoError(t, err)
	assert.Equal(t, "TXN-20240315-10000", last)
}

func TestCreateCustomerRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateCustomer(ctx, domain.Customer{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.CreateCustomer(ctx, domain.Customer{Name: "B", Email: "A@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.CreateCustomer(ctx, domain.Customer{Name: " "})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCompletedSalesByCustomerSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for _, sale := range []domain.Sale{
			{ID: "sal_1", TransactionNumber: "N1", CustomerID: "cus_1", Status: domain.SaleStatusCompleted, CreatedAt: now},
			{ID: "sal_2", TransactionNumber: "N2", CustomerID: "cus_1", Status: domain.SaleStatusCompleted, CreatedAt: now},
			{ID: "sal_3", TransactionNumber: "N3", Status: domain.SaleStatusCompleted, CreatedAt: now},
		} {
			if err := tx.InsertSale(ctx, sale); err != nil {
				return err
			}
		}
		return tx.InsertCancellation(ctx, domain.SaleCancellation{SaleID: "sal_2", ActorID: "manager", CreatedAt: now})
	}))

	counts, err := s.CompletedSalesByCustomer(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cus_1": 1}, counts)

	sale, err := s.GetSale(ctx, "sal_2")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCancelled, sale.Status)
}
