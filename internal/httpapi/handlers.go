package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
)

func (a *API) handleProcessSale(w http.ResponseWriter, r *http.Request) {
	var req domain.ProcessSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	resp, err := a.sales.Process(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.sales.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleGetSaleByNumber(w http.ResponseWriter, r *http.Request) {
	sale, err := a.sales.GetSaleByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

// handleCancelSale requires a valid manager PIN on top of the caller's role.
func (a *API) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.sales.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	products, err := a.catalog.ListProducts(r.Context(), store.ProductFilter{
		Category:     query.Get("category"),
		LowStockOnly: queryBool(query.Get("low_stock")),
		ActiveOnly:   queryBool(query.Get("active")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
	movements, err := a.catalog.ListMovements(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.ProductID = chi.URLParam(r, "id")

	movement, err := a.catalog.AdjustStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.catalog.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.catalog.CreateCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := a.catalog.ListPromotions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

func (a *API) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	promotion, err := a.catalog.CreatePromotion(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"promotion": promotion})
}

func (a *API) handleCheckPromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.catalog.CheckPromotion(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	result, err := a.reports.Sales(r.Context(), dateRange(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	name := fmt.Sprintf("sales-report-%s_%s", result.Range.From, result.Range.To)
	writeReport(w, r, name, result, report.SalesTables(result))
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := a.reports.Inventory(r.Context(), domain.InventoryFilter{
		Category:     query.Get("category"),
		LowStockOnly: queryBool(query.Get("low_stock")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeReport(w, r, "inventory-report", result, report.InventoryTables(result))
}

func (a *API) handleCustomersReport(w http.ResponseWriter, r *http.Request) {
	result, err := a.reports.Customers(r.Context(), dateRange(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	name := fmt.Sprintf("customer-report-%s_%s", result.Range.From, result.Range.To)
	writeReport(w, r, name, result, report.CustomerTables(result))
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// writeReport renders the JSON document or, for format=csv|xlsx, the
// tabular export as an attachment.
func writeReport(w http.ResponseWriter, r *http.Request, name string, doc any, tables []report.Table) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "", "json":
		writeJSON(w, http.StatusOK, doc)
		return
	case "csv":
		err = report.WriteCSV(&buf, tables)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		err = report.WriteXLSX(&buf, tables)
		contentType = xlsxContentType
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func dateRange(r *http.Request) domain.DateRange {
	query := r.URL.Query()
	return domain.DateRange{From: query.Get("from"), To: query.Get("to")}
}

func queryBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}
