package domain

import "time"

func ProductActive(p Product) bool {
	return p.Active
}

// ProductLowStock reports stock at or below the product's threshold.
func ProductLowStock(p Product) bool {
	return p.StockQuantity <= p.LowStockThreshold
}

func ProductOutOfStock(p Product) bool {
	return p.StockQuantity == 0
}

func CustomerIsActive(c Customer) bool {
	return c.Status == CustomerActive
}

func PromotionActive(p Promotion) bool {
	return p.Active
}

func PromotionHasUsageLeft(p Promotion) bool {
	return p.UsageLimit == nil || p.UsageCount < *p.UsageLimit
}

func PromotionWithinWindow(p Promotion, now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// PromotionValidAt reports whether the promotion can be redeemed at now,
// ignoring any minimum purchase.
func PromotionValidAt(p Promotion, now time.Time) bool {
	return PromotionActive(p) && PromotionWithinWindow(p, now) && PromotionHasUsageLeft(p)
}

// PromotionMinimumMet reports whether subtotalCents reaches the minimum
// purchase, if the promotion sets one.
func PromotionMinimumMet(p Promotion, subtotalCents int64) bool {
	return p.MinimumPurchaseCents == nil || subtotalCents >= *p.MinimumPurchaseCents
}

func SaleCompleted(s Sale) bool {
	return s.Status == SaleStatusCompleted && s.Cancellation == nil
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentDigital:
		return true
	default:
		return false
	}
}
