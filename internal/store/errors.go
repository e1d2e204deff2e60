package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerNotFound  = fmt.Errorf("customer %w", ErrNotFound)
	ErrPromotionNotFound = fmt.Errorf("promotion %w", ErrNotFound)
	ErrSaleNotFound      = fmt.Errorf("sale %w", ErrNotFound)

	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicate            = errors.New("already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrProductInactive      = errors.New("product is inactive")
	ErrPromotionInvalid     = errors.New("promotion invalid")
	ErrInsufficientPayment  = errors.New("amount paid is less than total")
	ErrTotalsMismatch       = errors.New("client totals do not match")
	ErrSaleAlreadyCancelled = errors.New("sale already cancelled")
	ErrForbidden            = errors.New("role not allowed")

	// ErrTransactionNumberConflict and ErrSerialization are retried by the
	// sale processor before they reach a caller.
	ErrTransactionNumberConflict = errors.New("transaction number conflict")
	ErrSerialization             = errors.New("serialization failure")
)

type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

type PromotionReason string

const (
	ReasonExpired               PromotionReason = "expired"
	ReasonNotYetActive          PromotionReason = "not_yet_active"
	ReasonInactive              PromotionReason = "inactive"
	ReasonUsageLimitReached     PromotionReason = "usage_limit_reached"
	ReasonMinimumPurchaseNotMet PromotionReason = "minimum_purchase_not_met"
)

type PromotionInvalidError struct {
	Code   string
	Reason PromotionReason
}

func (e *PromotionInvalidError) Error() string {
	return fmt.Sprintf("promotion %s invalid: %s", e.Code, e.Reason)
}

func (e *PromotionInvalidError) Unwrap() error {
	return ErrPromotionInvalid
}

type TotalsMismatchError struct {
	Field  string
	Client int64
	Server int64
}

func (e *TotalsMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: client %d, server %d", e.Field, e.Client, e.Server)
}

func (e *TotalsMismatchError) Unwrap() error {
	return ErrTotalsMismatch
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports errors that a fresh attempt of the same unit of work
// may not hit again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionNumberConflict) || errors.Is(err, ErrSerialization)
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	switch {
	case IsNotFound(err),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrProductInactive),
		errors.Is(err, ErrPromotionInvalid),
		errors.Is(err, ErrInsufficientPayment),
		errors.Is(err, ErrTotalsMismatch),
		errors.Is(err, ErrSaleAlreadyCancelled),
		errors.Is(err, ErrForbidden):
		return true
	default:
		return false
	}
}
