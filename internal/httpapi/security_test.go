package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	env := newTestAPI(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://127.0.0.1:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginRateLimitReturns429(t *testing.T) {
	env := newTestAPI(t)
	body := domain.LoginRequest{Username: "admin", Password: "wrong-pass"}

	for i := 0; i < 6; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	env := newTestAPI(t)
	veryLong := strings.Repeat("a", maxBodyBytes+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManagerPINRateLimitReturns429(t *testing.T) {
	env := newTestAPI(t)
	manager := env.token(t, domain.RoleManager)
	body := domain.CancelSaleRequest{Reason: "test", ManagerPIN: "000000"}

	for i := 0; i < 9; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/sales/sal_nonexistent/cancel", manager, body)
		if i < 8 {
			require.Equal(t, http.StatusForbidden, rec.Code, "attempt %d", i+1)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: store.ErrSaleNotFound, want: http.StatusNotFound},
		{err: &store.ProductNotFoundError{ProductID: "p"}, want: http.StatusNotFound},
		{err: &store.InsufficientStockError{ProductID: "p", Requested: 2, Available: 1}, want: http.StatusConflict},
		{err: store.ErrSaleAlreadyCancelled, want: http.StatusConflict},
		{err: &store.PromotionInvalidError{Code: "X", Reason: store.ReasonExpired}, want: http.StatusUnprocessableEntity},
		{err: &store.TotalsMismatchError{Field: "total_cents"}, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: bad", store.ErrInvalidInput), want: http.StatusBadRequest},
		{err: store.ErrInsufficientPayment, want: http.StatusBadRequest},
		{err: store.ErrForbidden, want: http.StatusForbidden},
		{err: fmt.Errorf("gave up: %w", store.ErrTransactionNumberConflict), want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("gave up: %w", store.ErrSerialization), want: http.StatusServiceUnavailable},
		{err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestServerErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: relation sales does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")

	rec = httptest.NewRecorder()
	writeServiceError(rec, store.ErrTransactionNumberConflict)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestBusyErrorsNameTheirCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("process sale gave up after 10 contention aborts: %w", store.ErrSerialization))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "store is busy")
	assert.NotContains(t, rec.Body.String(), "numbered")

	rec = httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("process sale gave up after 3 number conflicts: %w", store.ErrTransactionNumberConflict))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be numbered")
}

func TestParsePositiveLimitCaps(t *testing.T) {
	assert.Equal(t, 200, parsePositiveLimit("9999", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("invalid", 50, 200))
	assert.Equal(t, 7, parsePositiveLimit("7", 50, 200))
}
