package httpapi

import (
	"errors"
	"net/http"

	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/validate"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case store.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrSaleAlreadyCancelled),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrPromotionInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrTotalsMismatch),
		errors.Is(err, store.ErrInsufficientPayment),
		errors.Is(err, store.ErrProductInactive):
		return http.StatusBadRequest
	case store.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a domain error to its status and adds the
// structured details a client can act on.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	extra := map[string]any{}

	var invalid *validate.Error
	var stock *store.InsufficientStockError
	var promo *store.PromotionInvalidError
	var totals *store.TotalsMismatchError
	switch {
	case errors.As(err, &invalid):
		extra["fields"] = invalid.Fields
	case errors.As(err, &stock):
		extra["product_id"] = stock.ProductID
		extra["requested"] = stock.Requested
		extra["available"] = stock.Available
	case errors.As(err, &promo):
		extra["code"] = promo.Code
		extra["reason"] = promo.Reason
	case errors.As(err, &totals):
		extra["field"] = totals.Field
		extra["expected"] = totals.Server
	}

	if status == http.StatusServiceUnavailable {
		msg := "store is busy, retry"
		if errors.Is(err, store.ErrTransactionNumberConflict) {
			msg = "sale could not be numbered, retry"
		}
		w.Header().Set("Retry-After", "1")
		writeJSON(w, status, map[string]any{"error": msg})
		return
	}
	writeErrorBody(w, status, err, extra)
}
