// Package service holds the back-office catalog operations: products and
// their stock, customers and promotions. Sales live in package sale.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/ledger"
	"kasirpos/backend/internal/promotion"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/telemetry"
	"kasirpos/backend/internal/validate"
	"kasirpos/backend/internal/xid"
)

const (
	defaultLowStockThreshold = 10
	defaultMovementLimit     = 50
	maxMovementLimit         = 500
)

type Options struct {
	Promotions  promotion.Engine
	PhoneRegion string
	// Reports, when set, drops cached reports that a stock or customer
	// write made stale.
	Reports     report.Invalidator
	Clock       func() time.Time
}

type Service struct {
	repo        store.Repository
	promotions  promotion.Engine
	phoneRegion string
	reports     report.Invalidator
	now         func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	s := &Service{
		repo:        repo,
		promotions:  opts.Promotions,
		phoneRegion: strings.ToUpper(strings.TrimSpace(opts.PhoneRegion)),
		reports:     opts.Reports,
		now:         opts.Clock,
	}
	if s.phoneRegion == "" {
		s.phoneRegion = "ID"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *Service) invalidate(ctx context.Context, scopes ...report.Scope) {
	if s.reports != nil {
		s.reports.Invalidate(context.WithoutCancel(ctx), scopes...)
	}
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok || !actor.HasRole(roles...) {
		return fmt.Errorf("%w: requires %s", store.ErrForbidden, strings.Join(roles, " or "))
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, strings.TrimSpace(id))
}

// CreateProduct inserts the product at zero stock and books any initial
// stock through the ledger in the same transaction.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:                xid.New("prd"),
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		PriceCents:        req.PriceCents,
		LowStockThreshold: defaultLowStockThreshold,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}

	actorID := domain.ActorID(ctx)
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if req.InitialStock == 0 {
			return nil
		}
		_, err := ledger.ReserveAndCommit(ctx, tx, ledger.Movement{
			ProductID:     product.ID,
			Type:          domain.MovementStockIn,
			Quantity:      req.InitialStock,
			ReferenceType: domain.ReferenceAdjustment,
			Notes:         "Initial stock",
			ActorID:       actorID,
		}, now)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	product.StockQuantity = req.InitialStock

	telemetry.L().Info("product created",
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.String("actor", actorID),
		zap.Int("initial_stock", req.InitialStock),
	)
	s.invalidate(ctx, report.ScopeInventory)
	return product, nil
}

// AdjustStock books a manual stock movement. stock_in and stock_out take a
// delta in Quantity; adjustment takes the counted quantity in NewStock.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockChangeRequest) (domain.InventoryMovement, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.InventoryMovement{}, err
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validate.Struct(req); err != nil {
		return domain.InventoryMovement{}, err
	}

	movement := ledger.Movement{
		ProductID:     req.ProductID,
		Type:          req.Type,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		Notes:         req.Notes,
		ActorID:       domain.ActorID(ctx),
	}
	switch req.Type {
	case domain.MovementAdjustment:
		if req.NewStock == nil {
			return domain.InventoryMovement{}, fmt.Errorf("%w: new_stock is required for adjustments", store.ErrInvalidInput)
		}
		movement.NewStock = *req.NewStock
		movement.ReferenceType = domain.ReferenceAdjustment
	case domain.MovementStockIn:
		if movement.ReferenceType == "" {
			movement.ReferenceType = domain.ReferencePurchase
		}
	default:
		if movement.ReferenceType == "" {
			movement.ReferenceType = domain.ReferenceAdjustment
		}
	}

	var out domain.InventoryMovement
	err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = ledger.ReserveAndCommit(ctx, tx, movement, s.now())
		return err
	})
	if err != nil {
		return domain.InventoryMovement{}, err
	}

	telemetry.L().Info("stock adjusted",
		zap.String("product_id", out.ProductID),
		zap.String("type", out.Type),
		zap.Int("previous_stock", out.PreviousStock),
		zap.Int("new_stock", out.NewStock),
		zap.String("actor", out.ActorID),
	)
	s.invalidate(ctx, report.ScopeInventory)
	return out, nil
}

func (s *Service) ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}
	return s.repo.ListMovements(ctx, strings.TrimSpace(productID), limit)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Address = strings.TrimSpace(req.Address)
	if err := validate.Struct(req); err != nil {
		return domain.Customer{}, err
	}

	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:        xid.New("cus"),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     phone,
		Address:   req.Address,
		Status:    domain.CustomerActive,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.invalidate(ctx, report.ScopeCustomers)
	return *created, nil
}

// normalizePhone formats a phone number as E.164. Numbers without a
// country code are read in the configured region.
func (s *Service) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, s.phoneRegion)
	if err != nil {
		return "", fmt.Errorf("%w: phone: %v", store.ErrInvalidInput, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: phone number is not valid", store.ErrInvalidInput)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

func (s *Service) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

func (s *Service) CreatePromotion(ctx context.Context, req domain.PromotionCreateRequest) (domain.Promotion, error) {
	if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return domain.Promotion{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return domain.Promotion{}, err
	}

	value := req.Value.Round(2)
	switch {
	case !value.IsPositive():
		return domain.Promotion{}, fmt.Errorf("%w: value must be positive", store.ErrInvalidInput)
	case req.Type == domain.PromotionPercentage && value.GreaterThan(decimal.NewFromInt(100)):
		return domain.Promotion{}, fmt.Errorf("%w: percentage cannot exceed 100", store.ErrInvalidInput)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := s.repo.CreatePromotion(ctx, domain.Promotion{
		ID:                   xid.New("prm"),
		Name:                 req.Name,
		Code:                 req.Code,
		Description:          req.Description,
		Type:                 req.Type,
		Value:                value,
		MinimumPurchaseCents: req.MinimumPurchaseCents,
		UsageLimit:           req.UsageLimit,
		StartDate:            req.StartDate.UTC(),
		EndDate:              req.EndDate.UTC(),
		Active:               active,
		CreatedAt:            s.now(),
	})
	if err != nil {
		return domain.Promotion{}, err
	}

	telemetry.L().Info("promotion created",
		zap.String("code", created.Code),
		zap.String("type", created.Type),
		zap.String("value", created.Value.String()),
		zap.String("actor", domain.ActorID(ctx)),
	)
	return *created, nil
}

// CheckPromotion previews a code against a subtotal without using it up.
func (s *Service) CheckPromotion(ctx context.Context, req domain.PromotionCheckRequest) (domain.PromotionCheckResponse, error) {
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		return domain.PromotionCheckResponse{}, err
	}
	return s.promotions.Check(ctx, s.repo, req.Code, req.SubtotalCents, s.now())
}
