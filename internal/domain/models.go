package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MovementStockIn    = "stock_in"
	MovementStockOut   = "stock_out"
	MovementAdjustment = "adjustment"
)

const (
	ReferenceSale             = "sale"
	ReferenceSaleCancellation = "sale_cancellation"
	ReferencePurchase         = "purchase"
	ReferenceAdjustment       = "adjustment"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
	SaleStatusCancelled = "cancelled"
)

const (
	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentDigital = "digital"
)

const (
	PromotionPercentage  = "percentage"
	PromotionFixedAmount = "fixed_amount"
)

const (
	CustomerActive   = "active"
	CustomerInactive = "inactive"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

type Product struct {
	ID                string    `json:"id" db:"id"`
	SKU               string    `json:"sku" db:"sku"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description,omitempty" db:"description"`
	Category          string    `json:"category,omitempty" db:"category"`
	PriceCents        int64     `json:"price_cents" db:"price_cents"`
	StockQuantity     int       `json:"stock_quantity" db:"stock_quantity"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	Active            bool      `json:"active" db:"active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryMovement is one audited change to a product's stock. Rows are
// append-only.
type InventoryMovement struct {
	ID            string    `json:"id" db:"id"`
	ProductID     string    `json:"product_id" db:"product_id"`
	Type          string    `json:"type" db:"type"`
	Quantity      int       `json:"quantity" db:"quantity"`
	PreviousStock int       `json:"previous_stock" db:"previous_stock"`
	NewStock      int       `json:"new_stock" db:"new_stock"`
	ReferenceType string    `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID   string    `json:"reference_id,omitempty" db:"reference_id"`
	Notes         string    `json:"notes,omitempty" db:"notes"`
	ActorID       string    `json:"actor_id" db:"actor_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Customer struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email,omitempty" db:"email"`
	Phone         string    `json:"phone,omitempty" db:"phone"`
	Address       string    `json:"address,omitempty" db:"address"`
	LoyaltyPoints int64     `json:"loyalty_points" db:"loyalty_points"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Promotion.Value is a percent for percentage promotions and an amount in
// major currency units for fixed_amount promotions.
type Promotion struct {
	ID                   string          `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	Code                 string          `json:"code" db:"code"`
	Description          string          `json:"description,omitempty" db:"description"`
	Type                 string          `json:"type" db:"type"`
	Value                decimal.Decimal `json:"value" db:"value"`
	MinimumPurchaseCents *int64          `json:"minimum_purchase_cents,omitempty" db:"minimum_purchase_cents"`
	UsageLimit           *int            `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageCount           int             `json:"usage_count" db:"usage_count"`
	StartDate            time.Time       `json:"start_date" db:"start_date"`
	EndDate              time.Time       `json:"end_date" db:"end_date"`
	Active               bool            `json:"active" db:"active"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}

type Sale struct {
	ID                   string            `json:"id" db:"id"`
	TransactionNumber    string            `json:"transaction_number" db:"transaction_number"`
	CustomerID           string            `json:"customer_id,omitempty" db:"customer_id"`
	ActorID              string            `json:"actor_id" db:"actor_id"`
	SubtotalCents        int64             `json:"subtotal_cents" db:"subtotal_cents"`
	DiscountCents        int64             `json:"discount_cents" db:"discount_cents"`
	TaxCents             int64             `json:"tax_cents" db:"tax_cents"`
	TotalCents           int64             `json:"total_cents" db:"total_cents"`
	PaymentMethod        string            `json:"payment_method" db:"payment_method"`
	AmountPaidCents      int64             `json:"amount_paid_cents" db:"amount_paid_cents"`
	ChangeCents          int64             `json:"change_cents" db:"change_cents"`
	Status               string            `json:"status" db:"status"`
	Notes                string            `json:"notes,omitempty" db:"notes"`
	PromotionCode        string            `json:"promotion_code,omitempty" db:"promotion_code"`
	LoyaltyPointsAwarded int64             `json:"loyalty_points_awarded" db:"loyalty_points_awarded"`
	IdempotencyKey       string            `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	Items                []SaleItem        `json:"items" db:"-"`
	Customer             *Customer         `json:"customer,omitempty" db:"-"`
	Cancellation         *SaleCancellation `json:"cancellation,omitempty" db:"-"`
}

type SaleItem struct {
	ID              string `json:"id" db:"id"`
	SaleID          string `json:"sale_id" db:"sale_id"`
	ProductID       string `json:"product_id" db:"product_id"`
	ProductName     string `json:"product_name" db:"product_name"`
	SKU             string `json:"sku" db:"sku"`
	Quantity        int    `json:"quantity" db:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents" db:"unit_price_cents"`
	DiscountCents   int64  `json:"discount_cents" db:"discount_cents"`
	TotalPriceCents int64  `json:"total_price_cents" db:"total_price_cents"`
}

// SaleCancellation compensates a completed sale. The sale row itself is
// never rewritten; readers project its status to cancelled.
type SaleCancellation struct {
	SaleID    string    `json:"sale_id" db:"sale_id"`
	Reason    string    `json:"reason" db:"reason"`
	ActorID   string    `json:"actor_id" db:"actor_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string    `db:"username"`
	Password  string    `db:"password"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}
