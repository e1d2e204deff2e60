package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/sale"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
)

const (
	testSecret = "test-secret-key-with-at-least-32-chars"
	testPIN    = "482913"
)

type testEnv struct {
	api     *API
	handler http.Handler
	repo    *memory.Store
}

// newTestAPI wires the real processor, catalog and reports over a seeded
// memory store so handler tests cover the whole request path.
func newTestAPI(t *testing.T) testEnv {
	t.Helper()

	repo, err := memory.NewSeeded()
	require.NoError(t, err)

	sales := sale.NewProcessor(repo, sale.Options{TaxRatePercent: sale.DefaultTaxRatePercent})
	catalog := service.New(repo, service.Options{})
	reports := report.NewAggregator(repo, report.Options{})
	auth := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, repo)

	api := New(sales, catalog, reports, auth, "http://127.0.0.1:3000")
	return testEnv{api: api, handler: api.Handler(), repo: repo}
}

func (e testEnv) token(t *testing.T, role string) string {
	t.Helper()
	token, err := e.api.auth.sign(role, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) productBySKU(t *testing.T, sku string) domain.Product {
	t.Helper()
	products, err := e.repo.ListProducts(context.Background(), store.ProductFilter{})
	require.NoError(t, err)
	for _, p := range products {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("product %s not seeded", sku)
	return domain.Product{}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func cashSale(productID string, qty int) domain.ProcessSaleRequest {
	return domain.ProcessSaleRequest{
		Items:           []domain.CartLine{{ProductID: productID, Quantity: qty}},
		PaymentMethod:   "cash",
		AmountPaidCents: 1_000_000_000,
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestAPI(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestAPI(t)
	env.do(t, http.MethodGet, "/healthz", "", nil)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pos_http_requests_total")
}

func TestHandleLogin(t *testing.T) {
	env := newTestAPI(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "manager", Password: "manager123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[domain.LoginResponse](t, rec)
	assert.Equal(t, domain.RoleManager, resp.Role)
	assert.NotEmpty(t, resp.AccessToken)

	rec = env.do(t, http.MethodGet, "/api/v1/products", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "manager", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestAPI(t)

	rec := env.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcessSaleFlow(t *testing.T) {
	env := newTestAPI(t)
	cashier := env.token(t, domain.RoleCashier)
	coffee := env.productBySKU(t, "CF001")

	req := cashSale(coffee.ID, 3)
	req.IdempotencyKey = "till-1-0001"
	rec := env.do(t, http.MethodPost, "/api/v1/sales", cashier, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[domain.ProcessSaleResponse](t, rec)
	assert.False(t, created.Duplicate)
	assert.Equal(t, int64(3*8_500_000), created.Sale.SubtotalCents)
	assert.Equal(t, domain.SaleStatusCompleted, created.Sale.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/products/"+coffee.ID, cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeBody[map[string]domain.Product](t, rec)["product"]
	assert.Equal(t, coffee.StockQuantity-3, product.StockQuantity)

	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, req)
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decodeBody[domain.ProcessSaleResponse](t, rec)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, created.Sale.ID, replay.Sale.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sales/by-number/"+created.Sale.TransactionNumber, cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byNumber := decodeBody[map[string]domain.Sale](t, rec)["sale"]
	assert.Equal(t, created.Sale.ID, byNumber.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/sales/sal_missing", cashier, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessSaleIdempotencyHeader(t *testing.T) {
	env := newTestAPI(t)
	cashier := env.token(t, domain.RoleCashier)
	coffee := env.productBySKU(t, "CF001")

	payload, err := json.Marshal(cashSale(coffee.ID, 1))
	require.NoError(t, err)
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer "+cashier)
		req.Header.Set("Idempotency-Key", "hdr-key-1")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, send().Code)
	assert.Equal(t, http.StatusOK, send().Code)
}

func TestProcessSaleErrorStatuses(t *testing.T) {
	env := newTestAPI(t)
	cashier := env.token(t, domain.RoleCashier)
	notebook := env.productBySKU(t, "NB001")
	coffee := env.productBySKU(t, "CF001")

	rec := env.do(t, http.MethodPost, "/api/v1/sales", cashier, cashSale(notebook.ID, 5))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, notebook.ID, body["product_id"])
	assert.EqualValues(t, notebook.StockQuantity, body["available"])

	promo := cashSale(coffee.ID, 1)
	promo.PromotionCode = "FLASH50"
	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, promo)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	body = decodeBody[map[string]any](t, rec)
	assert.Equal(t, string(store.ReasonMinimumPurchaseNotMet), body["reason"])

	wrongTotal := cashSale(coffee.ID, 1)
	total := int64(1)
	wrongTotal.TotalCents = &total
	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, wrongTotal)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, domain.ProcessSaleRequest{PaymentMethod: "barter"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody[map[string]any](t, rec)
	assert.Contains(t, body, "fields")

	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, map[string]any{"surprise": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sales", cashier, cashSale("prd_unknown", 1))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSaleFlow(t *testing.T) {
	env := newTestAPI(t)
	coffee := env.productBySKU(t, "CF001")

	rec := env.do(t, http.MethodPost, "/api/v1/sales", env.token(t, domain.RoleCashier), cashSale(coffee.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[domain.ProcessSaleResponse](t, rec)
	path := "/api/v1/sales/" + created.Sale.ID + "/cancel"

	rec = env.do(t, http.MethodPost, path, env.token(t, domain.RoleCashier), domain.CancelSaleRequest{Reason: "x", ManagerPIN: testPIN})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	manager := env.token(t, domain.RoleManager)
	rec = env.do(t, http.MethodPost, path, manager, domain.CancelSaleRequest{Reason: "x", ManagerPIN: "000000"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, path, manager, domain.CancelSaleRequest{Reason: "customer changed mind", ManagerPIN: testPIN})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decodeBody[domain.CancelSaleResponse](t, rec)
	assert.Equal(t, domain.SaleStatusCancelled, cancelled.Sale.Status)
	require.Len(t, cancelled.Movements, 1)
	assert.Equal(t, domain.MovementStockIn, cancelled.Movements[0].Type)
	assert.Equal(t, coffee.StockQuantity, cancelled.Movements[0].NewStock)

	rec = env.do(t, http.MethodPost, path, manager, domain.CancelSaleRequest{Reason: "again", ManagerPIN: testPIN})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestAPI(t)
	admin := env.token(t, domain.RoleAdmin)
	cashier := env.token(t, domain.RoleCashier)

	productReq := domain.ProductCreateRequest{SKU: "PEN-01", Name: "Gel Pen", Category: "Books", PriceCents: 500_000, InitialStock: 20}
	rec := env.do(t, http.MethodPost, "/api/v1/products", cashier, productReq)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/products", admin, productReq)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[map[string]domain.Product](t, rec)["product"]

	rec = env.do(t, http.MethodPost, "/api/v1/products", admin, productReq)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/stock", admin, domain.StockChangeRequest{Type: "stock_in", Quantity: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/products/"+product.ID+"/movements?limit=1", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movements := decodeBody[map[string][]domain.InventoryMovement](t, rec)["movements"]
	require.Len(t, movements, 1)
	assert.Equal(t, 25, movements[0].NewStock)

	rec = env.do(t, http.MethodGet, "/api/v1/products?category=Books", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Product](t, rec)["products"], 2)

	rec = env.do(t, http.MethodPost, "/api/v1/customers", cashier, domain.CustomerCreateRequest{Name: "Rina", Phone: "0813 1111 2222"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customer := decodeBody[map[string]domain.Customer](t, rec)["customer"]
	assert.Equal(t, "+6281311112222", customer.Phone)

	rec = env.do(t, http.MethodPost, "/api/v1/customers", cashier, domain.CustomerCreateRequest{Name: "Bad", Phone: "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/customers", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Customer](t, rec)["customers"], 4)
}

func TestPromotionEndpoints(t *testing.T) {
	env := newTestAPI(t)
	cashier := env.token(t, domain.RoleCashier)

	rec := env.do(t, http.MethodPost, "/api/v1/promotions/check", cashier, domain.PromotionCheckRequest{Code: "THANKS10", SubtotalCents: 250_000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	check := decodeBody[domain.PromotionCheckResponse](t, rec)
	assert.Equal(t, int64(25_000), check.DiscountCents)

	rec = env.do(t, http.MethodPost, "/api/v1/promotions/check", cashier, domain.PromotionCheckRequest{Code: "NOPE", SubtotalCents: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/promotions", cashier, map[string]any{
		"name": "x", "code": "X", "type": "fixed_amount", "value": "10",
		"start_date": time.Now().UTC(), "end_date": time.Now().UTC().Add(time.Hour),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/promotions", cashier, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Promotion](t, rec)["promotions"], 3)
}

func TestReportEndpoints(t *testing.T) {
	env := newTestAPI(t)
	coffee := env.productBySKU(t, "CF001")
	rec := env.do(t, http.MethodPost, "/api/v1/sales", env.token(t, domain.RoleCashier), cashSale(coffee.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales", env.token(t, domain.RoleCashier), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	manager := env.token(t, domain.RoleManager)
	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	salesReport := decodeBody[domain.SalesReport](t, rec)
	assert.Equal(t, 1, salesReport.Summary.TotalTransactions)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/inventory?format=csv&low_stock=true", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventory-report.csv")
	assert.Contains(t, rec.Body.String(), "NB001")

	rec = env.do(t, http.MethodGet, "/api/v1/reports/customers?format=xlsx", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales?format=pdf", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/sales?from=2024-02-30", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
