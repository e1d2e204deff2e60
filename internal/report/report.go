// Package report aggregates committed sales, stock and customers into the
// back-office reports. It only reads.
package report

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
)

const (
	dateLayout        = "2006-01-02"
	topProductsLimit  = 10
	topCustomersLimit = 50
	recentMovements   = 5
)

// Reader is the slice of the repository the reports need.
type Reader interface {
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error)
	ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CompletedSalesByCustomer(ctx context.Context) (map[string]int, error)
}

// Scope is the key prefix shared by every cached variant of one report.
type Scope string

const (
	ScopeSales     Scope = "sales:"
	ScopeInventory Scope = "inventory:"
	ScopeCustomers Scope = "customers:"
)

// AllScopes covers every report a committed sale can change: revenue,
// stock levels and customer spend.
var AllScopes = []Scope{ScopeSales, ScopeInventory, ScopeCustomers}

// Invalidator drops cached reports after a write commits.
type Invalidator interface {
	Invalidate(ctx context.Context, scopes ...Scope)
}

type Options struct {
	Cache    cache.ReportCache
	CacheTTL time.Duration
	Location *time.Location
	Clock    func() time.Time
}

type Aggregator struct {
	repo     Reader
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewAggregator(repo Reader, opts Options) *Aggregator {
	a := &Aggregator{
		repo:     repo,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		loc:      opts.Location,
		now:      opts.Clock,
	}
	if a.cache == nil {
		a.cache = cache.NoopReportCache{}
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// window is an inclusive day range in the store timezone, with the
// half-open instant bounds used to query.
type window struct {
	dates domain.DateRange
	start time.Time
	end   time.Time
}

// resolve fills the default range (first of the month to today) and checks
// that from is not after to.
func (a *Aggregator) resolve(r domain.DateRange) (window, error) {
	today := a.now().In(a.loc)
	from := strings.TrimSpace(r.From)
	to := strings.TrimSpace(r.To)
	if from == "" {
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, a.loc).Format(dateLayout)
	}
	if to == "" {
		to = today.Format(dateLayout)
	}

	start, err := time.ParseInLocation(dateLayout, from, a.loc)
	if err != nil {
		return window{}, fmt.Errorf("%w: from must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	last, err := time.ParseInLocation(dateLayout, to, a.loc)
	if err != nil {
		return window{}, fmt.Errorf("%w: to must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	if last.Before(start) {
		return window{}, fmt.Errorf("%w: from is after to", store.ErrInvalidInput)
	}
	return window{
		dates: domain.DateRange{From: from, To: to},
		start: start,
		end:   last.AddDate(0, 0, 1),
	}, nil
}

// cached serves key from the cache or computes and stores it. Cache
// failures are logged and otherwise ignored.
func cached[T any](ctx context.Context, a *Aggregator, key string, compute func() (T, error)) (T, error) {
	var out T
	hit, err := a.cache.Get(ctx, key, &out)
	switch {
	case err != nil:
		telemetry.ReportCacheHitsTotal.WithLabelValues("error").Inc()
		telemetry.L().Warn("report cache get", zap.String("key", key), zap.Error(err))
	case hit:
		telemetry.ReportCacheHitsTotal.WithLabelValues("hit").Inc()
		return out, nil
	default:
		telemetry.ReportCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	out, err = compute()
	if err != nil {
		return out, err
	}
	if err := a.cache.Set(ctx, key, out, a.cacheTTL); err != nil {
		telemetry.L().Warn("report cache set", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// Invalidate drops the cached variants of each scope. Failures are logged;
// the cache TTL still bounds how long a stale report can be served.
func (a *Aggregator) Invalidate(ctx context.Context, scopes ...Scope) {
	for _, scope := range scopes {
		if err := a.cache.DeletePrefix(ctx, string(scope)); err != nil {
			telemetry.L().Warn("report cache invalidate", zap.String("scope", string(scope)), zap.Error(err))
		}
	}
}

// completedSales returns the sales in w whose effective status is completed.
func (a *Aggregator) completedSales(ctx context.Context, w window) ([]domain.Sale, error) {
	sales, err := a.repo.ListSales(ctx, w.start, w.end)
	if err != nil {
		return nil, err
	}
	out := sales[:0]
	for _, s := range sales {
		if domain.SaleCompleted(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Aggregator) Sales(ctx context.Context, r domain.DateRange) (domain.SalesReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.Sales")
	defer span.End()

	w, err := a.resolve(r)
	if err != nil {
		return domain.SalesReport{}, err
	}
	key := fmt.Sprintf("%s%s:%s", ScopeSales, w.dates.From, w.dates.To)
	return cached(ctx, a, key, func() (domain.SalesReport, error) {
		sales, err := a.completedSales(ctx, w)
		if err != nil {
			return domain.SalesReport{}, err
		}
		return a.buildSales(w, sales), nil
	})
}

func (a *Aggregator) buildSales(w window, sales []domain.Sale) domain.SalesReport {
	report := domain.SalesReport{
		Range:          w.dates,
		Daily:          []domain.DailySales{},
		TopProducts:    []domain.TopProduct{},
		PaymentMethods: []domain.PaymentBreakdown{},
	}

	daily := map[string]*domain.DailySales{}
	payments := map[string]*domain.PaymentBreakdown{}
	products := map[string]*domain.TopProduct{}
	for _, s := range sales {
		day := s.CreatedAt.In(a.loc).Format(dateLayout)
		d, ok := daily[day]
		if !ok {
			d = &domain.DailySales{Date: day}
			daily[day] = d
		}
		d.TransactionCount++
		d.TotalSalesCents += s.TotalCents

		p, ok := payments[s.PaymentMethod]
		if !ok {
			p = &domain.PaymentBreakdown{PaymentMethod: s.PaymentMethod}
			payments[s.PaymentMethod] = p
		}
		p.TransactionCount++
		p.TotalCents += s.TotalCents

		for _, item := range s.Items {
			tp, ok := products[item.ProductID]
			if !ok {
				tp = &domain.TopProduct{ProductID: item.ProductID, Name: item.ProductName, SKU: item.SKU}
				products[item.ProductID] = tp
			}
			tp.TotalQuantity += item.Quantity
			tp.TotalRevenueCents += item.TotalPriceCents
		}

		report.Summary.TotalTransactions++
		report.Summary.TotalRevenueCents += s.TotalCents
		report.Summary.TotalDiscountCents += s.DiscountCents
	}
	report.Summary.AverageTransactionCents = average(report.Summary.TotalRevenueCents, report.Summary.TotalTransactions)

	for _, d := range daily {
		d.AverageSaleCents = average(d.TotalSalesCents, d.TransactionCount)
		report.Daily = append(report.Daily, *d)
	}
	slices.SortFunc(report.Daily, func(x, y domain.DailySales) int {
		return strings.Compare(x.Date, y.Date)
	})

	for _, p := range payments {
		report.PaymentMethods = append(report.PaymentMethods, *p)
	}
	slices.SortFunc(report.PaymentMethods, func(x, y domain.PaymentBreakdown) int {
		return strings.Compare(x.PaymentMethod, y.PaymentMethod)
	})

	for _, tp := range products {
		report.TopProducts = append(report.TopProducts, *tp)
	}
	slices.SortFunc(report.TopProducts, func(x, y domain.TopProduct) int {
		if x.TotalQuantity != y.TotalQuantity {
			return y.TotalQuantity - x.TotalQuantity
		}
		if x.TotalRevenueCents != y.TotalRevenueCents {
			return compareDesc(x.TotalRevenueCents, y.TotalRevenueCents)
		}
		return strings.Compare(x.Name, y.Name)
	})
	if len(report.TopProducts) > topProductsLimit {
		report.TopProducts = report.TopProducts[:topProductsLimit]
	}
	return report
}

func (a *Aggregator) Inventory(ctx context.Context, filter domain.InventoryFilter) (domain.InventoryReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.Inventory")
	defer span.End()

	filter.Category = strings.TrimSpace(filter.Category)
	key := fmt.Sprintf("%s%s:%t", ScopeInventory, filter.Category, filter.LowStockOnly)
	return cached(ctx, a, key, func() (domain.InventoryReport, error) {
		return a.buildInventory(ctx, filter)
	})
}

func (a *Aggregator) buildInventory(ctx context.Context, filter domain.InventoryFilter) (domain.InventoryReport, error) {
	all, err := a.repo.ListProducts(ctx, store.ProductFilter{})
	if err != nil {
		return domain.InventoryReport{}, err
	}

	report := domain.InventoryReport{
		Filter:     filter,
		Products:   []domain.InventoryProduct{},
		Categories: []string{},
	}
	for _, p := range all {
		if p.Category != "" {
			report.Categories = append(report.Categories, p.Category)
		}
		if p.Active {
			report.Stats.TotalProducts++
			report.Stats.TotalStockValueCents += int64(p.StockQuantity) * p.PriceCents
			if domain.ProductLowStock(p) {
				report.Stats.LowStockCount++
			}
			if domain.ProductOutOfStock(p) {
				report.Stats.OutOfStockCount++
			}
		}

		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.LowStockOnly && !domain.ProductLowStock(p) {
			continue
		}
		movements, err := a.repo.ListMovements(ctx, p.ID, recentMovements)
		if err != nil {
			return domain.InventoryReport{}, err
		}
		report.Products = append(report.Products, domain.InventoryProduct{
			Product:         p,
			LowStock:        domain.ProductLowStock(p),
			RecentMovements: movements,
		})
	}
	slices.Sort(report.Categories)
	report.Categories = slices.Compact(report.Categories)
	return report, nil
}

func (a *Aggregator) Customers(ctx context.Context, r domain.DateRange) (domain.CustomerReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.Customers")
	defer span.End()

	w, err := a.resolve(r)
	if err != nil {
		return domain.CustomerReport{}, err
	}
	key := fmt.Sprintf("%s%s:%s", ScopeCustomers, w.dates.From, w.dates.To)
	return cached(ctx, a, key, func() (domain.CustomerReport, error) {
		return a.buildCustomers(ctx, w)
	})
}

func (a *Aggregator) buildCustomers(ctx context.Context, w window) (domain.CustomerReport, error) {
	customers, err := a.repo.ListCustomers(ctx)
	if err != nil {
		return domain.CustomerReport{}, err
	}
	sales, err := a.completedSales(ctx, w)
	if err != nil {
		return domain.CustomerReport{}, err
	}
	lifetime, err := a.repo.CompletedSalesByCustomer(ctx)
	if err != nil {
		return domain.CustomerReport{}, err
	}

	spend := make(map[string]*domain.CustomerSpend, len(customers))
	report := domain.CustomerReport{Range: w.dates, Customers: make([]domain.CustomerSpend, 0, len(customers))}
	for _, c := range customers {
		spend[c.ID] = &domain.CustomerSpend{CustomerID: c.ID, Name: c.Name, LoyaltyPoints: c.LoyaltyPoints}
		report.Stats.TotalLoyaltyPoints += c.LoyaltyPoints
		if domain.CustomerIsActive(c) {
			report.Stats.TotalCustomers++
		}
		if !c.CreatedAt.Before(w.start) && c.CreatedAt.Before(w.end) {
			report.Stats.NewCustomers++
		}
		// Cancelled sales do not make a customer a repeat buyer.
		if lifetime[c.ID] > 1 {
			report.Stats.RepeatCustomers++
		}
	}
	for _, s := range sales {
		cs, ok := spend[s.CustomerID]
		if !ok {
			continue
		}
		cs.TotalPurchases++
		cs.TotalSpentCents += s.TotalCents
	}

	for _, cs := range spend {
		report.Customers = append(report.Customers, *cs)
	}
	slices.SortFunc(report.Customers, func(x, y domain.CustomerSpend) int {
		if x.TotalSpentCents != y.TotalSpentCents {
			return compareDesc(x.TotalSpentCents, y.TotalSpentCents)
		}
		if x.TotalPurchases != y.TotalPurchases {
			return y.TotalPurchases - x.TotalPurchases
		}
		return strings.Compare(x.Name, y.Name)
	})
	if len(report.Customers) > topCustomersLimit {
		report.Customers = report.Customers[:topCustomersLimit]
	}
	return report, nil
}

// average rounds half up to the nearest cent.
func average(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(count))).Round(0).IntPart()
}

func compareDesc(x, y int64) int {
	switch {
	case x > y:
		return -1
	case x < y:
		return 1
	default:
		return 0
	}
}
