package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
)

var hundred = decimal.NewFromInt(100)

type Engine struct {
	// ClampFixedAmount caps fixed_amount discounts at the subtotal. When
	// false a large fixed discount can push the sale total below zero.
	ClampFixedAmount bool
}

// Validate resolves code and reports the first rule it breaks, checked in a
// fixed order: window start, window end, active flag, usage, minimum.
func (e Engine) Validate(ctx context.Context, reader store.PromotionReader, code string, subtotalCents int64, now time.Time) (domain.Promotion, error) {
	code = strings.TrimSpace(code)
	promo, err := reader.GetPromotionByCode(ctx, code)
	if err != nil {
		return domain.Promotion{}, err
	}

	if reason, ok := invalidReason(*promo, subtotalCents, now); !ok {
		return domain.Promotion{}, &store.PromotionInvalidError{Code: promo.Code, Reason: reason}
	}
	return *promo, nil
}

func invalidReason(p domain.Promotion, subtotalCents int64, now time.Time) (store.PromotionReason, bool) {
	if domain.PromotionValidAt(p, now) && domain.PromotionMinimumMet(p, subtotalCents) {
		return "", true
	}
	switch {
	case !domain.PromotionWithinWindow(p, now) && now.Before(p.StartDate):
		return store.ReasonNotYetActive, false
	case !domain.PromotionWithinWindow(p, now):
		return store.ReasonExpired, false
	case !domain.PromotionActive(p):
		return store.ReasonInactive, false
	case !domain.PromotionHasUsageLeft(p):
		return store.ReasonUsageLimitReached, false
	default:
		return store.ReasonMinimumPurchaseNotMet, false
	}
}

// Apply consumes one use of the promotion inside tx. A concurrent sale that
// took the last use makes this fail with UsageLimitReached.
func (e Engine) Apply(ctx context.Context, tx store.Tx, promo domain.Promotion) error {
	ok, err := tx.IncrementPromotionUsage(ctx, promo.ID)
	if err != nil {
		return err
	}
	if !ok {
		return &store.PromotionInvalidError{Code: promo.Code, Reason: store.ReasonUsageLimitReached}
	}
	telemetry.PromotionRedemptionsTotal.Inc()
	return nil
}

// ComputeDiscount returns the discount in cents. Percentages round half
// away from zero to the nearest cent.
func (e Engine) ComputeDiscount(promo domain.Promotion, subtotalCents int64) int64 {
	switch promo.Type {
	case domain.PromotionPercentage:
		return decimal.NewFromInt(subtotalCents).Mul(promo.Value).Div(hundred).Round(0).IntPart()
	case domain.PromotionFixedAmount:
		discount := promo.Value.Mul(hundred).Round(0).IntPart()
		if e.ClampFixedAmount && discount > subtotalCents {
			return subtotalCents
		}
		return discount
	default:
		return 0
	}
}

// Check validates code against subtotal and previews the discount without
// consuming a use.
func (e Engine) Check(ctx context.Context, reader store.PromotionReader, code string, subtotalCents int64, now time.Time) (domain.PromotionCheckResponse, error) {
	promo, err := e.Validate(ctx, reader, code, subtotalCents, now)
	if err != nil {
		return domain.PromotionCheckResponse{}, err
	}
	return domain.PromotionCheckResponse{
		Promotion:     promo,
		DiscountCents: e.ComputeDiscount(promo, subtotalCents),
	}, nil
}
