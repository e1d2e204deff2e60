package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/seed"
	"kasirpos/backend/internal/xid"
)

// Store keeps everything in process memory behind one mutex. WithTx holds
// the write lock for the whole callback, which serialises every unit of
// work the way a single-writer database would.
type Store struct {
	mu            sync.RWMutex
	products      map[string]domain.Product
	productBySKU  map[string]string
	movements     []domain.InventoryMovement
	customers     map[string]domain.Customer
	promotions    map[string]domain.Promotion
	promoByCode   map[string]string
	sales         map[string]domain.Sale
	saleByNumber  map[string]string
	saleByIdem    map[string]string
	saleItems     map[string][]domain.SaleItem
	cancellations map[string]domain.SaleCancellation
	users         map[string]domain.UserAccount
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		products:      make(map[string]domain.Product),
		productBySKU:  make(map[string]string),
		movements:     make([]domain.InventoryMovement, 0, 128),
		customers:     make(map[string]domain.Customer),
		promotions:    make(map[string]domain.Promotion),
		promoByCode:   make(map[string]string),
		sales:         make(map[string]domain.Sale),
		saleByNumber:  make(map[string]string),
		saleByIdem:    make(map[string]string),
		saleItems:     make(map[string][]domain.SaleItem),
		cancellations: make(map[string]domain.SaleCancellation),
		users:         make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store loaded with the demo catalog and the bootstrap
// user accounts.
func NewSeeded() (*Store, error) {
	s := New()
	now := time.Now().UTC()
	data := seed.Demo(now)
	for _, p := range data.Products {
		s.products[p.ID] = p
		s.productBySKU[p.SKU] = p.ID
	}
	s.movements = append(s.movements, data.Movements...)
	for _, c := range data.Customers {
		s.customers[c.ID] = c
	}
	for _, p := range data.Promotions {
		s.promotions[p.ID] = p
		s.promoByCode[promoKey(p.Code)] = p.ID
	}

	users, err := seed.Users(now)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.ActiveOnly && !domain.ProductActive(p) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.LowStockOnly && !domain.ProductLowStock(p) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmpString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return &p, nil
}

// ListMovements returns the newest movements first. A limit of zero or less
// returns all of them.
func (s *Store) ListMovements(_ context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrProductNotFound
	}
	out := make([]domain.InventoryMovement, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID != productID {
			continue
		}
		out = append(out, s.movements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if c := cmpString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}
	if customer.Email != "" {
		for _, existing := range s.customers {
			if strings.EqualFold(existing.Email, customer.Email) {
				return nil, fmt.Errorf("customer email %s: %w", customer.Email, store.ErrDuplicate)
			}
		}
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.Status == "" {
		customer.Status = domain.CustomerActive
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	promotions := make([]domain.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		promotions = append(promotions, clonePromotion(p))
	}
	slices.SortFunc(promotions, func(a, b domain.Promotion) int {
		return cmpString(a.Code, b.Code)
	})
	return promotions, nil
}

func (s *Store) GetPromotionByCode(_ context.Context, code string) (*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.promotionByCodeLocked(code)
}

func (s *Store) CreatePromotion(_ context.Context, promotion domain.Promotion) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := promoKey(promotion.Code)
	if key == "" {
		return nil, fmt.Errorf("%w: promotion code is required", store.ErrInvalidInput)
	}
	if _, exists := s.promoByCode[key]; exists {
		return nil, fmt.Errorf("promotion code %s: %w", key, store.ErrDuplicate)
	}
	promotion.Code = key
	if promotion.ID == "" {
		promotion.ID = xid.New("prm")
	}
	if promotion.CreatedAt.IsZero() {
		promotion.CreatedAt = time.Now().UTC()
	}
	promotion = clonePromotion(promotion)
	s.promotions[promotion.ID] = promotion
	s.promoByCode[key] = promotion.ID
	out := clonePromotion(promotion)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saleLocked(id)
}

func (s *Store) GetSaleByNumber(_ context.Context, number string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.saleByNumber[strings.TrimSpace(number)]
	if !ok {
		return nil, store.ErrSaleNotFound
	}
	return s.saleLocked(id)
}

func (s *Store) GetSaleByIdempotencyKey(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.saleByIdem[strings.TrimSpace(key)]
	if !ok {
		return nil, store.ErrSaleNotFound
	}
	return s.saleLocked(id)
}

func (s *Store) LastTransactionNumber(_ context.Context, prefix string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastNumberLocked(prefix), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, s.projectSaleLocked(sale, false))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return 1
		}
		return cmpString(a.TransactionNumber, b.TransactionNumber)
	})
	return sales, nil
}

func (s *Store) CompletedSalesByCustomer(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for id, sale := range s.sales {
		if sale.CustomerID == "" || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if _, cancelled := s.cancellations[id]; cancelled {
			continue
		}
		counts[sale.CustomerID]++
	}
	return counts, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("user %s: %w", username, store.ErrDuplicate)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

// Helpers below expect s.mu to be held by the caller.

func (s *Store) promotionByCodeLocked(code string) (*domain.Promotion, error) {
	id, ok := s.promoByCode[promoKey(code)]
	if !ok {
		return nil, store.ErrPromotionNotFound
	}
	p := clonePromotion(s.promotions[id])
	return &p, nil
}

func (s *Store) saleLocked(id string) (*domain.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrSaleNotFound
	}
	out := s.projectSaleLocked(sale, true)
	return &out, nil
}

// projectSaleLocked attaches items and the cancellation record. The stored
// row keeps its original status; a cancellation projects it to cancelled.
func (s *Store) projectSaleLocked(sale domain.Sale, withCustomer bool) domain.Sale {
	items := s.saleItems[sale.ID]
	sale.Items = make([]domain.SaleItem, len(items))
	copy(sale.Items, items)
	if c, ok := s.cancellations[sale.ID]; ok {
		cancellation := c
		sale.Cancellation = &cancellation
		sale.Status = domain.SaleStatusCancelled
	}
	if withCustomer && sale.CustomerID != "" {
		if c, ok := s.customers[sale.CustomerID]; ok {
			customer := c
			sale.Customer = &customer
		}
	}
	return sale
}

func (s *Store) lastNumberLocked(prefix string) string {
	last := ""
	for number := range s.saleByNumber {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		if len(number) > len(last) || (len(number) == len(last) && number > last) {
			last = number
		}
	}
	return last
}

func promoKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func clonePromotion(src domain.Promotion) domain.Promotion {
	dup := src
	if src.MinimumPurchaseCents != nil {
		v := *src.MinimumPurchaseCents
		dup.MinimumPurchaseCents = &v
	}
	if src.UsageLimit != nil {
		v := *src.UsageLimit
		dup.UsageLimit = &v
	}
	return dup
}
