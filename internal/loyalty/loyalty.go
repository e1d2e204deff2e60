package loyalty

import (
	"context"
	"strings"

	"kasirpos/backend/internal/store"
)

// DefaultCentsPerPoint awards one point per 10,000 major currency units.
const DefaultCentsPerPoint int64 = 1_000_000

type Account struct {
	CentsPerPoint int64
}

func New(centsPerPoint int64) Account {
	if centsPerPoint <= 0 {
		centsPerPoint = DefaultCentsPerPoint
	}
	return Account{CentsPerPoint: centsPerPoint}
}

// Points is floor(total / CentsPerPoint); non-positive totals earn nothing.
func (a Account) Points(totalCents int64) int64 {
	divisor := a.CentsPerPoint
	if divisor <= 0 {
		divisor = DefaultCentsPerPoint
	}
	if totalCents <= 0 {
		return 0
	}
	return totalCents / divisor
}

// Accrue credits the customer for a sale total and returns the new point
// balance. Walk-in sales (no customer) are a no-op returning zero.
func (a Account) Accrue(ctx context.Context, tx store.Tx, customerID string, saleTotalCents int64) (int64, error) {
	if strings.TrimSpace(customerID) == "" {
		return 0, nil
	}
	customer, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}

	points := a.Points(saleTotalCents)
	if points == 0 {
		return customer.LoyaltyPoints, nil
	}
	return tx.AddLoyaltyPoints(ctx, customerID, points)
}

// Reverse takes back points awarded by a cancelled sale and returns the new
// balance. The balance never drops below zero even if the points were
// already spent.
func (a Account) Reverse(ctx context.Context, tx store.Tx, customerID string, points int64) (int64, error) {
	if strings.TrimSpace(customerID) == "" || points <= 0 {
		return 0, nil
	}
	return tx.AddLoyaltyPoints(ctx, customerID, -points)
}
