package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CartLine struct {
	ProductID       string `json:"product_id" validate:"required"`
	Quantity        int    `json:"quantity" validate:"min=1"`
	UnitPriceCents  *int64 `json:"unit_price_cents,omitempty" validate:"omitempty,min=0"`
	DiscountCents   int64  `json:"discount_cents" validate:"min=0"`
	TotalPriceCents *int64 `json:"total_price_cents,omitempty" validate:"omitempty,min=0"`
}

// ProcessSaleRequest carries a cart. The optional totals are compared with
// the server's own figures and rejected on mismatch.
type ProcessSaleRequest struct {
	Items           []CartLine `json:"items" validate:"required,min=1,dive"`
	CustomerID      string     `json:"customer_id,omitempty"`
	PaymentMethod   string     `json:"payment_method" validate:"required,payment_method"`
	AmountPaidCents int64      `json:"amount_paid_cents" validate:"min=0"`
	PromotionCode   string     `json:"promotion_code,omitempty"`
	Notes           string     `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty" validate:"max=128"`

	SubtotalCents *int64 `json:"subtotal_cents,omitempty"`
	DiscountCents *int64 `json:"discount_cents,omitempty"`
	TaxCents      *int64 `json:"tax_cents,omitempty"`
	TotalCents    *int64 `json:"total_cents,omitempty"`
	ChangeCents   *int64 `json:"change_cents,omitempty"`
}

type ProcessSaleResponse struct {
	Sale      Sale `json:"sale"`
	Duplicate bool `json:"duplicate"`
}

type CancelSaleRequest struct {
	SaleID     string `json:"-"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type CancelSaleResponse struct {
	Sale      Sale                `json:"sale"`
	Movements []InventoryMovement `json:"movements"`
}

type ProductCreateRequest struct {
	SKU               string `json:"sku" validate:"required,max=64"`
	Name              string `json:"name" validate:"required,max=255"`
	Description       string `json:"description"`
	Category          string `json:"category" validate:"max=128"`
	PriceCents        int64  `json:"price_cents" validate:"min=0"`
	LowStockThreshold *int   `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	InitialStock      int    `json:"initial_stock" validate:"min=0"`
}

// StockChangeRequest drives a manual ledger entry. For adjustments NewStock
// is the counted quantity; otherwise Quantity is the delta.
type StockChangeRequest struct {
	ProductID     string `json:"-"`
	Type          string `json:"type" validate:"required,oneof=stock_in stock_out adjustment"`
	Quantity      int    `json:"quantity" validate:"min=0"`
	NewStock      *int   `json:"new_stock,omitempty" validate:"omitempty,min=0"`
	ReferenceType string `json:"reference_type,omitempty" validate:"omitempty,oneof=purchase adjustment"`
	Notes         string `json:"notes,omitempty"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type PromotionCreateRequest struct {
	Name                 string          `json:"name" validate:"required"`
	Code                 string          `json:"code" validate:"required,max=64"`
	Description          string          `json:"description,omitempty"`
	Type                 string          `json:"type" validate:"required,oneof=percentage fixed_amount"`
	Value                decimal.Decimal `json:"value"`
	MinimumPurchaseCents *int64          `json:"minimum_purchase_cents,omitempty" validate:"omitempty,min=0"`
	UsageLimit           *int            `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	StartDate            time.Time       `json:"start_date" validate:"required"`
	EndDate              time.Time       `json:"end_date" validate:"required,gtfield=StartDate"`
	Active               *bool           `json:"active,omitempty"`
}

type PromotionCheckRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int64  `json:"subtotal_cents" validate:"min=0"`
}

type PromotionCheckResponse struct {
	Promotion     Promotion `json:"promotion"`
	DiscountCents int64     `json:"discount_cents"`
}
