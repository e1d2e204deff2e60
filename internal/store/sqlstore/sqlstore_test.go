package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// openStores returns SQLite always and PostgreSQL when
// KASIRPOS_TEST_DATABASE_URL points at a disposable database.
func openStores(t *testing.T) map[string]*Store {
	t.Helper()
	stores := map[string]*Store{"sqlite": openSQLite(t)}
	if url := os.Getenv("KASIRPOS_TEST_DATABASE_URL"); url != "" {
		pg, err := OpenPostgres(context.Background(), url)
		require.NoError(t, err)
		_, err = pg.db.Exec(`TRUNCATE sale_cancellations, sale_items, sales, inventory_movements, products, customers, promotions, app_users`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func insertProduct(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertProduct(context.Background(), domain.Product{
			ID: id, SKU: "SKU-" + id, Name: "Item " + id, PriceCents: 1_000,
			StockQuantity: stock, LowStockThreshold: 5, Active: true, CreatedAt: now, UpdatedAt: now,
		})
	}))
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.SeedDemo(ctx))
	require.NoError(t, s.SeedDemo(ctx))
	require.NoError(t, s.SeedUsers(ctx))

	products, err := s.ListProducts(ctx, store.ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, products, 8)

	electronics, err := s.ListProducts(ctx, store.ProductFilter{Category: "Electronics"})
	require.NoError(t, err)
	assert.Len(t, electronics, 3)

	movements, err := s.ListMovements(ctx, products[0].ID, 5)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "Initial stock", movements[0].Notes)

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 3)

	promo, err := s.GetPromotionByCode(ctx, "flash50")
	require.NoError(t, err)
	assert.True(t, promo.Value.Equal(decimal.NewFromInt(50_000)))
	require.NotNil(t, promo.MinimumPurchaseCents)
	assert.EqualValues(t, 20_000_000, *promo.MinimumPurchaseCents)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestWithTxRollsBack(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertProduct(t, s, "prd_rb", 10)

			err := s.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.SetProductStock(ctx, "prd_rb", 4, now); err != nil {
					return err
				}
				return tx.SetProductStock(ctx, "prd_rb", -1, now)
			})
			require.ErrorIs(t, err, store.ErrInvalidInput)

			p, err := s.GetProduct(ctx, "prd_rb")
			require.NoError(t, err)
			assert.Equal(t, 10, p.StockQuantity)
		})
	}
}

func TestSaleRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insertProduct(t, s, "prd_rt", 10)
			customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Budi", Email: "budi@example.com", CreatedAt: now})
			require.NoError(t, err)

			sale := domain.Sale{
				ID: "sal_rt", TransactionNumber: "TXN-20240315-0001", CustomerID: customer.ID, ActorID: "kasir",
				SubtotalCents: 2_000, TaxCents: 200, TotalCents: 2_200, PaymentMethod: domain.PaymentCash,
				AmountPaidCents: 5_000, ChangeCents: 2_800, Status: domain.SaleStatusCompleted,
				LoyaltyPointsAwarded: 0, IdempotencyKey: "idem-rt", CreatedAt: now,
			}
			require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.InsertSale(ctx, sale); err != nil {
					return err
				}
				return tx.InsertSaleItems(ctx, []domain.SaleItem{{
					ID: "sli_rt", SaleID: sale.ID, ProductID: "prd_rt", ProductName: "Item prd_rt", SKU: "SKU-prd_rt",
					Quantity: 2, UnitPriceCents: 1_000, TotalPriceCents: 2_000,
				}})
			}))

			got, err := s.GetSaleByIdempotencyKey(ctx, "idem-rt")
			require.NoError(t, err)
			assert.Equal(t, sale.TransactionNumber, got.TransactionNumber)
			assert.True(t, got.CreatedAt.Equal(now))
			require.Len(t, got.Items, 1)
			require.NotNil(t, got.Customer)
			assert.Equal(t, "Budi", got.Customer.Name)

			byNumber, err := s.GetSaleByNumber(ctx, "TXN-20240315-0001")
			require.NoError(t, err)
			assert.Equal(t, sale.ID, byNumber.ID)

			sales, err := s.ListSales(ctx, now.Add(-time.Minute), now.Add(time.Minute))
			require.NoError(t, err)
			require.Len(t, sales, 1)
			assert.Len(t, sales[0].Items, 1)

			err = s.WithTx(ctx, func(tx store.Tx) error {
				dup := sale
				dup.ID = "sal_dup"
				dup.IdempotencyKey = ""
				return tx.InsertSale(ctx, dup)
			})
			assert.ErrorIs(t, err, store.ErrTransactionNumberConflict)

			err = s.WithTx(ctx, func(tx store.Tx) error {
				dup := sale
				dup.ID = "sal_dup2"
				dup.TransactionNumber = "TXN-20240315-0002"
				return tx.InsertSale(ctx, dup)
			})
			assert.ErrorIs(t, err, store.ErrDuplicate)

			require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
				return tx.InsertCancellation(ctx, domain.SaleCancellation{SaleID: sale.ID, ActorID: "manager", Reason: "void", CreatedAt: now})
			}))
			cancelled, err := s.GetSale(ctx, sale.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.SaleStatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.Cancellation)
			assert.Equal(t, "void", cancelled.Cancellation.Reason)

			counts, err := s.CompletedSalesByCustomer(ctx)
			require.NoError(t, err)
			assert.Empty(t, counts)

			err = s.WithTx(ctx, func(tx store.Tx) error {
				return tx.InsertCancellation(ctx, domain.SaleCancellation{SaleID: sale.ID, ActorID: "manager", CreatedAt: now})
			})
			assert.ErrorIs(t, err, store.ErrSaleAlreadyCancelled)
		})
	}
}

func TestLastTransactionNumberMatchesPrefixLiterally(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i, number := range []string{"TXN-20240315-9999", "TXN-20240315-10000", "TXNX20240315-99999", "TXN-20240316-0001"} {
			sale := domain.Sale{
				ID: "sal_" + string(rune('a'+i)), TransactionNumber: number, ActorID: "kasir",
				PaymentMethod: domain.PaymentCash, Status: domain.SaleStatusCompleted, CreatedAt: now,
			}
			if err := tx.InsertSale(ctx, sale); err != nil {
				return err
			}
		}
		return nil
	}))

	last, err := s.LastTransactionNumber(ctx, "TXN-20240315-")
	require.NoError(t, err)
	assert.Equal(t, "TXN-20240315-10000", last)

	last, err = s.LastTransactionNumber(ctx, "TXN_20240315-")
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestPromotionUsageAndLoyaltyClamp(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			limit := 1
			promo, err := s.CreatePromotion(ctx, domain.Promotion{
				Name: "Once", Code: "once", Type: domain.PromotionPercentage, Value: decimal.RequireFromString("12.5"),
				UsageLimit: &limit, StartDate: now, EndDate: now.Add(time.Hour), Active: true, CreatedAt: now,
			})
			require.NoError(t, err)
			assert.Equal(t, "ONCE", promo.Code)
			customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Siti", LoyaltyPoints: 3, CreatedAt: now})
			require.NoError(t, err)

			var first, second bool
			var balance int64
			require.NoError(t, s.WithTx(ctx, func(tx store.Tx) (err error) {
				if first, err = tx.IncrementPromotionUsage(ctx, promo.ID); err != nil {
					return err
				}
				if second, err = tx.IncrementPromotionUsage(ctx, promo.ID); err != nil {
					return err
				}
				balance, err = tx.AddLoyaltyPoints(ctx, customer.ID, -10)
				return err
			}))
			assert.True(t, first)
			assert.False(t, second)
			assert.EqualValues(t, 0, balance)

			stored, err := s.GetPromotionByCode(ctx, "ONCE")
			require.NoError(t, err)
			assert.Equal(t, 1, stored.UsageCount)
			assert.True(t, stored.Value.Equal(decimal.RequireFromString("12.5")))

			err = s.WithTx(ctx, func(tx store.Tx) error {
				_, err := tx.IncrementPromotionUsage(ctx, "prm_missing")
				return err
			})
			assert.ErrorIs(t, err, store.ErrPromotionNotFound)
		})
	}
}

func TestUsersAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Admin ", Password: "hash", Role: domain.RoleAdmin}))
	assert.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "admin", Password: "hash"}), store.ErrDuplicate)
	require.NoError(t, s.UpdateUserPassword(ctx, "ADMIN", "hash2"))
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "hash2", users[0].Password)

	_, err = s.CreateCustomer(ctx, domain.Customer{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.CreateCustomer(ctx, domain.Customer{Name: "B", Email: "A@Example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.CreateCustomer(ctx, domain.Customer{Name: "C"})
	require.NoError(t, err)
	_, err = s.CreateCustomer(ctx, domain.Customer{Name: "D"})
	require.NoError(t, err)
}
