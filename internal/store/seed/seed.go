// Package seed holds the demo catalog loaded into fresh stores.
package seed

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/telemetry"
	"kasirpos/backend/internal/xid"
)

const systemActor = "system"

type Data struct {
	Products   []domain.Product
	Movements  []domain.InventoryMovement
	Customers  []domain.Customer
	Promotions []domain.Promotion
}

// Demo returns a small IDR catalog with opening stock movements, three
// customers and three promotion codes whose windows are relative to now.
func Demo(now time.Time) Data {
	now = now.UTC()
	products := []domain.Product{
		{SKU: "SM001", Name: "Smartphone Samsung Galaxy", Description: "Latest Samsung Galaxy smartphone", Category: "Electronics", PriceCents: 350_000_000, StockQuantity: 25, LowStockThreshold: 5},
		{SKU: "LP001", Name: "Laptop ASUS VivoBook", Description: "Lightweight laptop for work and entertainment", Category: "Electronics", PriceCents: 750_000_000, StockQuantity: 15, LowStockThreshold: 3},
		{SKU: "CF001", Name: "Coffee Arabica Premium", Description: "Freshly roasted arabica beans", Category: "Food & Beverage", PriceCents: 8_500_000, StockQuantity: 50, LowStockThreshold: 10},
		{SKU: "TS001", Name: "T-Shirt Cotton Basic", Description: "100% cotton t-shirt", Category: "Clothing", PriceCents: 7_500_000, StockQuantity: 3, LowStockThreshold: 10},
		{SKU: "MS001", Name: "Wireless Mouse Logitech", Description: "Ergonomic wireless mouse", Category: "Electronics", PriceCents: 12_500_000, StockQuantity: 40, LowStockThreshold: 8},
		{SKU: "NB001", Name: "Notebook A5 Lined", Description: "Lined notebook", Category: "Books", PriceCents: 2_500_000, StockQuantity: 2, LowStockThreshold: 15},
		{SKU: "HS001", Name: "Hand Sanitizer 100ml", Description: "Hand sanitizer with 70% alcohol", Category: "Health & Beauty", PriceCents: 1_500_000, StockQuantity: 100, LowStockThreshold: 20},
		{SKU: "WB001", Name: "Sports Water Bottle", Description: "BPA-free water bottle", Category: "Sports", PriceCents: 4_500_000, StockQuantity: 30, LowStockThreshold: 8},
	}

	data := Data{}
	for _, p := range products {
		p.ID = xid.New("prd")
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		data.Products = append(data.Products, p)
		if p.StockQuantity > 0 {
			data.Movements = append(data.Movements, domain.InventoryMovement{
				ID:            xid.New("mov"),
				ProductID:     p.ID,
				Type:          domain.MovementStockIn,
				Quantity:      p.StockQuantity,
				PreviousStock: 0,
				NewStock:      p.StockQuantity,
				ReferenceType: domain.ReferenceAdjustment,
				Notes:         "Initial stock",
				ActorID:       systemActor,
				CreatedAt:     now,
			})
		}
	}

	for _, c := range []domain.Customer{
		{Name: "Budi Santoso", Email: "budi@email.com", Phone: "+6281234567890", Address: "Jl. Merdeka No. 123, Jakarta", LoyaltyPoints: 150},
		{Name: "Siti Nurhaliza", Email: "siti@email.com", Phone: "+6281987654321", Address: "Jl. Sudirman No. 456, Bandung", LoyaltyPoints: 250},
		{Name: "Ahmad Rahman", Email: "ahmad@email.com", Phone: "+6281122334455", Address: "Jl. Diponegoro No. 789, Surabaya", LoyaltyPoints: 75},
	} {
		c.ID = xid.New("cus")
		c.Status = domain.CustomerActive
		c.CreatedAt = now
		data.Customers = append(data.Customers, c)
	}

	day := 24 * time.Hour
	data.Promotions = []domain.Promotion{
		{
			ID: xid.New("prm"), Name: "New Year Sale", Code: "NEWYEAR2024", Description: "15% off electronics",
			Type: domain.PromotionPercentage, Value: decimal.NewFromInt(15),
			MinimumPurchaseCents: int64Ptr(10_000_000), UsageLimit: intPtr(100),
			StartDate: now.Add(-7 * day), EndDate: now.Add(30 * day), Active: true, CreatedAt: now,
		},
		{
			ID: xid.New("prm"), Name: "Flash Sale", Code: "FLASH50", Description: "IDR 50,000 off above IDR 200,000",
			Type: domain.PromotionFixedAmount, Value: decimal.NewFromInt(50_000),
			MinimumPurchaseCents: int64Ptr(20_000_000), UsageLimit: intPtr(50),
			StartDate: now, EndDate: now.Add(7 * day), Active: true, CreatedAt: now,
		},
		{
			ID: xid.New("prm"), Name: "Customer Appreciation", Code: "THANKS10", Description: "10% off for loyal customers",
			Type: domain.PromotionPercentage, Value: decimal.NewFromInt(10),
			StartDate: now.Add(-3 * day), EndDate: now.Add(60 * day), Active: true, CreatedAt: now,
		},
	}
	return data
}

// Users builds the bootstrap accounts for dev/demo mode. Passwords come from
// SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD with
// dev fallbacks.
func Users(now time.Time) ([]domain.UserAccount, error) {
	accounts := []struct {
		username string
		envKey   string
		fallback string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin123", domain.RoleAdmin},
		{"manager", "SEED_MANAGER_PASSWORD", "manager123", domain.RoleManager},
		{"cashier", "SEED_CASHIER_PASSWORD", "cashier123", domain.RoleCashier},
	}

	users := make([]domain.UserAccount, 0, len(accounts))
	for _, a := range accounts {
		password := os.Getenv(a.envKey)
		if password == "" {
			telemetry.L().Warn("using default dev credentials", zap.String("username", a.username), zap.String("override", a.envKey))
			password = a.fallback
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", a.username, err)
		}
		users = append(users, domain.UserAccount{
			Username:  a.username,
			Password:  string(hash),
			Role:      a.role,
			Active:    true,
			CreatedAt: now.UTC(),
		})
	}
	return users, nil
}

func intPtr(v int) *int {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}
