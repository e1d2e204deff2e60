package store

import (
	"context"
	"time"

	"kasirpos/backend/internal/domain"
)

// PromotionReader is satisfied by both Repository and Tx so promotions can
// be checked inside or outside a sale.
type PromotionReader interface {
	GetPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error)
}

// Tx is the unit of work handed to Repository.WithTx. Every write made
// through it commits or rolls back together.
type Tx interface {
	PromotionReader

	// LockProduct reads a product and holds it against concurrent writers
	// until the unit of work ends.
	LockProduct(ctx context.Context, id string) (*domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) error
	SetProductStock(ctx context.Context, id string, qty int, at time.Time) error
	InsertMovement(ctx context.Context, movement domain.InventoryMovement) error

	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	// AddLoyaltyPoints applies delta and returns the new balance, never
	// letting it drop below zero.
	AddLoyaltyPoints(ctx context.Context, customerID string, delta int64) (int64, error)

	// IncrementPromotionUsage returns false when the usage limit is
	// already reached.
	IncrementPromotionUsage(ctx context.Context, id string) (bool, error)

	LastTransactionNumber(ctx context.Context, prefix string) (string, error)
	// InsertSale returns ErrTransactionNumberConflict when the number is taken.
	InsertSale(ctx context.Context, sale domain.Sale) error
	InsertSaleItems(ctx context.Context, items []domain.SaleItem) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// InsertCancellation returns ErrSaleAlreadyCancelled on a second call.
	InsertCancellation(ctx context.Context, cancellation domain.SaleCancellation) error
}

type ProductFilter struct {
	Category     string
	LowStockOnly bool
	ActiveOnly   bool
}

type Repository interface {
	PromotionReader

	WithTx(ctx context.Context, fn func(tx Tx) error) error

	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	CreatePromotion(ctx context.Context, promotion domain.Promotion) (*domain.Promotion, error)

	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByNumber(ctx context.Context, number string) (*domain.Sale, error)
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error)
	LastTransactionNumber(ctx context.Context, prefix string) (string, error)
	// ListSales returns sales created in [from, to) with their items and
	// projected status.
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	// CompletedSalesByCustomer counts non-cancelled sales per customer over
	// all time.
	CompletedSalesByCustomer(ctx context.Context) (map[string]int, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
