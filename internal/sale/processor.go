// Package sale turns a cart into a committed sale: stock, sale rows,
// loyalty and promotion usage change together or not at all.
package sale

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/events"
	"kasirpos/backend/internal/ledger"
	"kasirpos/backend/internal/loyalty"
	"kasirpos/backend/internal/promotion"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
	"kasirpos/backend/internal/txnumber"
	"kasirpos/backend/internal/validate"
	"kasirpos/backend/internal/xid"
)

const (
	DefaultTaxRatePercent        = 10
	DefaultMaxAttempts           = 3
	// DefaultSerializationAttempts bounds reruns after lock or
	// serialization failures. Contention on a hot product can take
	// several rounds to drain, so it is larger than DefaultMaxAttempts.
	DefaultSerializationAttempts = 10
	DefaultRetryBackoff          = 10 * time.Millisecond
)

var hundred = decimal.NewFromInt(100)

type Options struct {
	Numbers               txnumber.Generator
	Promotions            promotion.Engine
	Loyalty               loyalty.Account
	Publisher             events.Publisher
	// Reports, when set, drops cached reports once a sale or cancellation
	// commits.
	Reports               report.Invalidator
	// TaxRatePercent applies to subtotal minus discount. Zero means no tax;
	// negative values fall back to DefaultTaxRatePercent.
	TaxRatePercent        int
	// MaxAttempts bounds reruns after a transaction number conflict.
	MaxAttempts           int
	// SerializationAttempts bounds reruns after the store aborted the unit
	// of work for contention. RetryBackoff is the base delay between those
	// reruns; each wait is jittered and grows with the attempt number.
	SerializationAttempts int
	RetryBackoff          time.Duration
	Clock                 func() time.Time
}

type Processor struct {
	repo           store.Repository
	numbers        txnumber.Generator
	promotions     promotion.Engine
	loyalty        loyalty.Account
	publisher      events.Publisher
	reports        report.Invalidator
	taxRatePercent int64
	maxAttempts    int
	serialAttempts int
	backoff        time.Duration
	now            func() time.Time
}

func NewProcessor(repo store.Repository, opts Options) *Processor {
	p := &Processor{
		repo:           repo,
		numbers:        opts.Numbers,
		promotions:     opts.Promotions,
		loyalty:        opts.Loyalty,
		publisher:      opts.Publisher,
		reports:        opts.Reports,
		taxRatePercent: int64(opts.TaxRatePercent),
		maxAttempts:    opts.MaxAttempts,
		serialAttempts: opts.SerializationAttempts,
		backoff:        opts.RetryBackoff,
		now:            opts.Clock,
	}
	if p.numbers == nil {
		p.numbers = txnumber.NewStoreSequence("TXN", time.UTC)
	}
	if p.loyalty.CentsPerPoint <= 0 {
		p.loyalty = loyalty.New(loyalty.DefaultCentsPerPoint)
	}
	if p.publisher == nil {
		p.publisher = events.NoopPublisher{}
	}
	if p.taxRatePercent < 0 {
		p.taxRatePercent = DefaultTaxRatePercent
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.serialAttempts < 1 {
		p.serialAttempts = DefaultSerializationAttempts
	}
	if p.backoff <= 0 {
		p.backoff = DefaultRetryBackoff
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	return p
}

// Process validates the cart and commits the sale. A request whose
// idempotency key already produced a sale returns that sale with
// Duplicate set instead of selling twice.
func (p *Processor) Process(ctx context.Context, req domain.ProcessSaleRequest) (domain.ProcessSaleResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "sale.Process")
	defer span.End()
	started := time.Now()

	resp, err := p.process(ctx, req)
	telemetry.SaleProcessDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		result := "failed"
		if store.IsClientError(err) {
			result = "rejected"
		}
		telemetry.SalesProcessedTotal.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ProcessSaleResponse{}, err
	case resp.Duplicate:
		telemetry.SalesProcessedTotal.WithLabelValues("duplicate").Inc()
	default:
		telemetry.SalesProcessedTotal.WithLabelValues("completed").Inc()
	}
	span.SetAttributes(
		attribute.String("sale.id", resp.Sale.ID),
		attribute.String("sale.transaction_number", resp.Sale.TransactionNumber),
		attribute.Bool("sale.duplicate", resp.Duplicate),
	)
	return resp, nil
}

func (p *Processor) process(ctx context.Context, req domain.ProcessSaleRequest) (domain.ProcessSaleResponse, error) {
	req = normalizeRequest(req)
	if err := validate.Struct(req); err != nil {
		return domain.ProcessSaleResponse{}, err
	}

	if req.IdempotencyKey != "" {
		existing, err := p.repo.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return domain.ProcessSaleResponse{Sale: *existing, Duplicate: true}, nil
		}
		if !store.IsNotFound(err) {
			return domain.ProcessSaleResponse{}, err
		}
	}

	actorID := domain.ActorID(ctx)
	var sale *domain.Sale
	err := p.retry(ctx, "process", func(now time.Time) error {
		var attemptErr error
		sale, attemptErr = p.attempt(ctx, req, actorID, now)
		return attemptErr
	})
	if err != nil {
		// A concurrent request with the same key committed first.
		if req.IdempotencyKey != "" && errors.Is(err, store.ErrDuplicate) {
			existing, getErr := p.repo.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr == nil {
				return domain.ProcessSaleResponse{Sale: *existing, Duplicate: true}, nil
			}
		}
		return domain.ProcessSaleResponse{}, err
	}

	telemetry.L().Info("sale processed",
		zap.String("sale_id", sale.ID),
		zap.String("transaction_number", sale.TransactionNumber),
		zap.String("actor", actorID),
		zap.Int64("total_cents", sale.TotalCents),
		zap.Int("items", len(sale.Items)),
		zap.String("promotion_code", sale.PromotionCode),
	)
	p.invalidateReports(ctx)
	p.publish(ctx, events.TypeSaleCompleted, *sale)
	return domain.ProcessSaleResponse{Sale: *sale}, nil
}

// attempt runs one unit of work. Any error rolls back everything it wrote.
func (p *Processor) attempt(ctx context.Context, req domain.ProcessSaleRequest, actorID string, now time.Time) (*domain.Sale, error) {
	var out *domain.Sale
	err := p.repo.WithTx(ctx, func(tx store.Tx) error {
		if req.CustomerID != "" {
			if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
				return err
			}
		}

		products, err := lockProducts(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		items, subtotal, err := buildItems(req.Items, products)
		if err != nil {
			return err
		}

		var promo *domain.Promotion
		discount := int64(0)
		if req.PromotionCode != "" {
			validated, err := p.promotions.Validate(ctx, tx, req.PromotionCode, subtotal, now)
			if err != nil {
				return err
			}
			promo = &validated
			discount = p.promotions.ComputeDiscount(validated, subtotal)
		}

		tax := p.taxFor(subtotal - discount)
		total := subtotal - discount + tax
		change := req.AmountPaidCents - total
		if change < 0 {
			change = 0
		}

		if err := checkClientTotals(req, subtotal, discount, tax, total, change); err != nil {
			return err
		}
		if req.AmountPaidCents < total {
			return fmt.Errorf("%w: paid %d, total %d", store.ErrInsufficientPayment, req.AmountPaidCents, total)
		}

		number, err := p.numbers.Next(ctx, tx, now)
		if err != nil {
			return err
		}

		var pointsAwarded int64
		if req.CustomerID != "" {
			pointsAwarded = p.loyalty.Points(total)
		}

		sale := domain.Sale{
			ID:                   xid.New("sal"),
			TransactionNumber:    number,
			CustomerID:           req.CustomerID,
			ActorID:              actorID,
			SubtotalCents:        subtotal,
			DiscountCents:        discount,
			TaxCents:             tax,
			TotalCents:           total,
			PaymentMethod:        req.PaymentMethod,
			AmountPaidCents:      req.AmountPaidCents,
			ChangeCents:          change,
			Status:               domain.SaleStatusCompleted,
			Notes:                req.Notes,
			LoyaltyPointsAwarded: pointsAwarded,
			IdempotencyKey:       req.IdempotencyKey,
			CreatedAt:            now,
		}
		if promo != nil {
			sale.PromotionCode = promo.Code
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		for i := range items {
			items[i].SaleID = sale.ID
			_, err := ledger.ReserveAndCommit(ctx, tx, ledger.Movement{
				ProductID:     items[i].ProductID,
				Type:          domain.MovementStockOut,
				Quantity:      items[i].Quantity,
				ReferenceType: domain.ReferenceSale,
				ReferenceID:   sale.ID,
				Notes:         "Sale: " + number,
				ActorID:       actorID,
			}, now)
			if err != nil {
				return err
			}
		}
		if err := tx.InsertSaleItems(ctx, items); err != nil {
			return err
		}

		if _, err := p.loyalty.Accrue(ctx, tx, req.CustomerID, total); err != nil {
			return err
		}
		if promo != nil {
			if err := p.promotions.Apply(ctx, tx, *promo); err != nil {
				return err
			}
		}

		out, err = tx.GetSale(ctx, sale.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// retry reruns fn while it fails with a retryable error. Number
// conflicts and contention aborts are counted against separate budgets,
// and the error returned when one runs out wraps only its own cause.
// Each attempt gets a fresh clock reading.
func (p *Processor) retry(ctx context.Context, op string, fn func(now time.Time) error) error {
	conflicts, aborts := 0, 0
	for {
		now := p.now()
		err := fn(now)
		if err == nil || !store.IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var reason string
		if errors.Is(err, store.ErrTransactionNumberConflict) {
			reason = "number_conflict"
			conflicts++
			if conflicts >= p.maxAttempts {
				return fmt.Errorf("%s gave up after %d number conflicts: %w", op, conflicts, err)
			}
			if r, ok := p.numbers.(interface {
				Reset(ctx context.Context, now time.Time) error
			}); ok {
				if resetErr := r.Reset(ctx, now); resetErr != nil {
					telemetry.L().Warn("reset transaction sequence", zap.Error(resetErr))
				}
			}
		} else {
			reason = "serialization"
			aborts++
			if aborts >= p.serialAttempts {
				return fmt.Errorf("%s gave up after %d contention aborts: %w", op, aborts, err)
			}
			if waitErr := p.wait(ctx, aborts); waitErr != nil {
				return waitErr
			}
		}
		telemetry.TxnNumberRetriesTotal.WithLabelValues(reason).Inc()
		telemetry.L().Debug("retrying sale unit of work",
			zap.String("op", op), zap.String("reason", reason),
			zap.Int("number_conflicts", conflicts), zap.Int("contention_aborts", aborts), zap.Error(err))
	}
}

// wait sleeps a random duration in [0, backoff*attempt) or until ctx is done.
func (p *Processor) wait(ctx context.Context, attempt int) error {
	d := time.Duration(rand.Int63n(int64(p.backoff) * int64(attempt)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Processor) taxFor(taxableCents int64) int64 {
	return decimal.NewFromInt(taxableCents).
		Mul(decimal.NewFromInt(p.taxRatePercent)).
		Div(hundred).
		Round(0).
		IntPart()
}

func (p *Processor) invalidateReports(ctx context.Context) {
	if p.reports != nil {
		p.reports.Invalidate(context.WithoutCancel(ctx), report.AllScopes...)
	}
}

func (p *Processor) publish(ctx context.Context, eventType string, sale domain.Sale) {
	event := events.New(eventType, sale.ID, sale, p.now())
	if err := p.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		telemetry.L().Warn("publish sale event",
			zap.String("event_type", eventType),
			zap.String("sale_id", sale.ID),
			zap.Error(err))
	}
}

func (p *Processor) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return p.repo.GetSale(ctx, strings.TrimSpace(id))
}

func (p *Processor) GetSaleByNumber(ctx context.Context, number string) (*domain.Sale, error) {
	return p.repo.GetSaleByNumber(ctx, number)
}

// lockProducts locks each distinct product once, in ID order, so two carts
// touching the same products cannot deadlock each other.
func lockProducts(ctx context.Context, tx store.Tx, lines []domain.CartLine) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	products := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		product, err := tx.LockProduct(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, &store.ProductNotFoundError{ProductID: id}
			}
			return nil, err
		}
		if !domain.ProductActive(*product) {
			return nil, fmt.Errorf("%w: %s", store.ErrProductInactive, product.Name)
		}
		products[id] = product
	}
	return products, nil
}

// buildItems prices every line from the catalog. Client-supplied unit and
// line prices must agree with the catalog.
func buildItems(lines []domain.CartLine, products map[string]*domain.Product) ([]domain.SaleItem, int64, error) {
	items := make([]domain.SaleItem, 0, len(lines))
	subtotal := int64(0)
	for i, line := range lines {
		product := products[line.ProductID]
		gross := product.PriceCents * int64(line.Quantity)
		if line.DiscountCents > gross {
			return nil, 0, fmt.Errorf("%w: items[%d] discount exceeds line amount", store.ErrInvalidInput, i)
		}
		lineTotal := gross - line.DiscountCents

		if line.UnitPriceCents != nil && *line.UnitPriceCents != product.PriceCents {
			return nil, 0, &store.TotalsMismatchError{Field: fmt.Sprintf("items[%d].unit_price_cents", i), Client: *line.UnitPriceCents, Server: product.PriceCents}
		}
		if line.TotalPriceCents != nil && *line.TotalPriceCents != lineTotal {
			return nil, 0, &store.TotalsMismatchError{Field: fmt.Sprintf("items[%d].total_price_cents", i), Client: *line.TotalPriceCents, Server: lineTotal}
		}

		items = append(items, domain.SaleItem{
			ID:              xid.New("sli"),
			ProductID:       product.ID,
			ProductName:     product.Name,
			SKU:             product.SKU,
			Quantity:        line.Quantity,
			UnitPriceCents:  product.PriceCents,
			DiscountCents:   line.DiscountCents,
			TotalPriceCents: lineTotal,
		})
		subtotal += lineTotal
	}
	return items, subtotal, nil
}

func checkClientTotals(req domain.ProcessSaleRequest, subtotal, discount, tax, total, change int64) error {
	checks := []struct {
		field  string
		client *int64
		server int64
	}{
		{"subtotal_cents", req.SubtotalCents, subtotal},
		{"discount_cents", req.DiscountCents, discount},
		{"tax_cents", req.TaxCents, tax},
		{"total_cents", req.TotalCents, total},
		{"change_cents", req.ChangeCents, change},
	}
	for _, c := range checks {
		if c.client != nil && *c.client != c.server {
			return &store.TotalsMismatchError{Field: c.field, Client: *c.client, Server: c.server}
		}
	}
	return nil
}

func normalizeRequest(req domain.ProcessSaleRequest) domain.ProcessSaleRequest {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.PromotionCode = strings.ToUpper(strings.TrimSpace(req.PromotionCode))
	req.Notes = strings.TrimSpace(req.Notes)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	items := make([]domain.CartLine, len(req.Items))
	for i, line := range req.Items {
		line.ProductID = strings.TrimSpace(line.ProductID)
		items[i] = line
	}
	if req.Items != nil {
		req.Items = items
	}
	return req
}
