package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

const (
	productColumns = `id, sku, name, description, category, price_cents, stock_quantity, low_stock_threshold, active, created_at, updated_at`

	movementColumns = `id, product_id, type, quantity, previous_stock, new_stock, reference_type, reference_id, notes, actor_id, created_at`

	customerColumns = `id, name, email, phone, address, loyalty_points, status, created_at`

	promotionColumns = `id, name, code, description, type, value, minimum_purchase_cents, usage_limit, usage_count, start_date, end_date, active, created_at`

	saleColumns = `s.id, s.transaction_number, COALESCE(s.customer_id, '') AS customer_id, s.actor_id,
		s.subtotal_cents, s.discount_cents, s.tax_cents, s.total_cents, s.payment_method,
		s.amount_paid_cents, s.change_cents, s.status, s.notes, s.promotion_code,
		s.loyalty_points_awarded, COALESCE(s.idempotency_key, '') AS idempotency_key, s.created_at`

	saleItemColumns = `i.id, i.sale_id, i.product_id, i.product_name, i.sku, i.quantity, i.unit_price_cents, i.discount_cents, i.total_price_cents`

	cancellationColumns = `c.sale_id, c.reason, c.actor_id, c.created_at`
)

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "active = ?")
		args = append(args, true)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.LowStockOnly {
		where = append(where, "stock_quantity <= low_stock_threshold")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`

	products := make([]domain.Product, 0, 64)
	if err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return utcProducts(products), nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, s.db, id, "")
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, id string, suffix string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?` + suffix
	if err := sqlx.GetContext(ctx, q, &p, rebind(q, query), id); err != nil {
		return nil, notFound(err, store.ErrProductNotFound)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE product_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{productID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	movements := make([]domain.InventoryMovement, 0, 16)
	if err := s.db.SelectContext(ctx, &movements, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range movements {
		movements[i].CreatedAt = movements[i].CreatedAt.UTC()
	}
	return movements, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, 32)
	if err := s.db.SelectContext(ctx, &customers, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`); err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i].CreatedAt = customers[i].CreatedAt.UTC()
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func getCustomer(ctx context.Context, q sqlx.QueryerContext, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := sqlx.GetContext(ctx, q, &c, rebind(q, `SELECT `+customerColumns+` FROM customers WHERE id = ?`), id); err != nil {
		return nil, notFound(err, store.ErrCustomerNotFound)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
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

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :name, :email, :phone, :address, :loyalty_points, :status, :created_at)
	`, customer)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("customer email %s: %w", customer.Email, store.ErrDuplicate)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	promotions := make([]domain.Promotion, 0, 16)
	if err := s.db.SelectContext(ctx, &promotions, `SELECT `+promotionColumns+` FROM promotions ORDER BY code`); err != nil {
		return nil, err
	}
	for i := range promotions {
		utcPromotion(&promotions[i])
	}
	return promotions, nil
}

func (s *Store) GetPromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	return getPromotionByCode(ctx, s.db, code)
}

func getPromotionByCode(ctx context.Context, q sqlx.QueryerContext, code string) (*domain.Promotion, error) {
	var p domain.Promotion
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE code = ?`
	if err := sqlx.GetContext(ctx, q, &p, rebind(q, query), promoKey(code)); err != nil {
		return nil, notFound(err, store.ErrPromotionNotFound)
	}
	utcPromotion(&p)
	return &p, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promotion domain.Promotion) (*domain.Promotion, error) {
	promotion.Code = promoKey(promotion.Code)
	if promotion.Code == "" {
		return nil, fmt.Errorf("%w: promotion code is required", store.ErrInvalidInput)
	}
	if promotion.ID == "" {
		promotion.ID = xid.New("prm")
	}
	if promotion.CreatedAt.IsZero() {
		promotion.CreatedAt = time.Now().UTC()
	}
	promotion.StartDate = promotion.StartDate.UTC()
	promotion.EndDate = promotion.EndDate.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES (:id, :name, :code, :description, :type, :value, :minimum_purchase_cents, :usage_limit,
			:usage_count, :start_date, :end_date, :active, :created_at)
	`, promotion)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("promotion code %s: %w", promotion.Code, store.ErrDuplicate)
		}
		return nil, err
	}
	return &promotion, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(ctx, s.db, "s.id = ?", id)
}

func (s *Store) GetSaleByNumber(ctx context.Context, number string) (*domain.Sale, error) {
	return getSale(ctx, s.db, "s.transaction_number = ?", strings.TrimSpace(number))
}

func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	return getSale(ctx, s.db, "s.idempotency_key = ?", strings.TrimSpace(key))
}

// getSale loads one sale with its items, customer and cancellation, and
// projects the status of a cancelled sale.
func getSale(ctx context.Context, q sqlx.QueryerContext, cond string, arg any) (*domain.Sale, error) {
	var sale domain.Sale
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE ` + cond
	if err := sqlx.GetContext(ctx, q, &sale, rebind(q, query), arg); err != nil {
		return nil, notFound(err, store.ErrSaleNotFound)
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items := make([]domain.SaleItem, 0, 8)
	itemQuery := `SELECT ` + saleItemColumns + ` FROM sale_items i WHERE i.sale_id = ? ORDER BY i.id`
	if err := sqlx.SelectContext(ctx, q, &items, rebind(q, itemQuery), sale.ID); err != nil {
		return nil, err
	}
	sale.Items = items

	var cancellation domain.SaleCancellation
	cancelQuery := `SELECT ` + cancellationColumns + ` FROM sale_cancellations c WHERE c.sale_id = ?`
	err := sqlx.GetContext(ctx, q, &cancellation, rebind(q, cancelQuery), sale.ID)
	switch {
	case err == nil:
		cancellation.CreatedAt = cancellation.CreatedAt.UTC()
		sale.Cancellation = &cancellation
		sale.Status = domain.SaleStatusCancelled
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	if sale.CustomerID != "" {
		customer, err := getCustomer(ctx, q, sale.CustomerID)
		if err != nil && !store.IsNotFound(err) {
			return nil, err
		}
		sale.Customer = customer
	}
	return &sale, nil
}

func (s *Store) LastTransactionNumber(ctx context.Context, prefix string) (string, error) {
	return lastTransactionNumber(ctx, s.db, prefix)
}

// lastTransactionNumber orders by length first so NNNNN sorts after NNNN.
func lastTransactionNumber(ctx context.Context, q sqlx.QueryerContext, prefix string) (string, error) {
	var number string
	query := `
		SELECT transaction_number FROM sales
		WHERE transaction_number LIKE ? ESCAPE '\'
		ORDER BY LENGTH(transaction_number) DESC, transaction_number DESC
		LIMIT 1`
	err := sqlx.GetContext(ctx, q, &number, rebind(q, query), likePrefix(prefix))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	from, to = from.UTC(), to.UTC()
	sales := make([]domain.Sale, 0, 64)
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.created_at >= ? AND s.created_at < ? ORDER BY s.created_at, s.transaction_number`
	if err := s.db.SelectContext(ctx, &sales, s.db.Rebind(query), from, to); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	items := make([]domain.SaleItem, 0, len(sales)*2)
	itemQuery := `
		SELECT ` + saleItemColumns + ` FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.created_at >= ? AND s.created_at < ?
		ORDER BY i.id`
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(itemQuery), from, to); err != nil {
		return nil, err
	}

	cancellations := make([]domain.SaleCancellation, 0)
	cancelQuery := `
		SELECT ` + cancellationColumns + ` FROM sale_cancellations c
		JOIN sales s ON s.id = c.sale_id
		WHERE s.created_at >= ? AND s.created_at < ?`
	if err := s.db.SelectContext(ctx, &cancellations, s.db.Rebind(cancelQuery), from, to); err != nil {
		return nil, err
	}

	itemsBySale := make(map[string][]domain.SaleItem, len(sales))
	for _, item := range items {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	cancelBySale := make(map[string]domain.SaleCancellation, len(cancellations))
	for _, c := range cancellations {
		c.CreatedAt = c.CreatedAt.UTC()
		cancelBySale[c.SaleID] = c
	}
	for i := range sales {
		sales[i].CreatedAt = sales[i].CreatedAt.UTC()
		sales[i].Items = itemsBySale[sales[i].ID]
		if sales[i].Items == nil {
			sales[i].Items = []domain.SaleItem{}
		}
		if c, ok := cancelBySale[sales[i].ID]; ok {
			cancellation := c
			sales[i].Cancellation = &cancellation
			sales[i].Status = domain.SaleStatusCancelled
		}
	}
	return sales, nil
}

func (s *Store) CompletedSalesByCustomer(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		CustomerID string `db:"customer_id"`
		Count      int    `db:"sale_count"`
	}
	query := `
		SELECT s.customer_id, COUNT(*) AS sale_count
		FROM sales s
		WHERE s.customer_id IS NOT NULL AND s.status = ?
			AND NOT EXISTS (SELECT 1 FROM sale_cancellations c WHERE c.sale_id = s.id)
		GROUP BY s.customer_id`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), domain.SaleStatusCompleted); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.CustomerID] = row.Count
	}
	return counts, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES (:username, :password, :role, :active, :created_at, :created_at)
	`, user)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("user %s: %w", user.Username, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 16)
	if err := s.db.SelectContext(ctx, &users, `SELECT username, password, role, active, created_at FROM app_users ORDER BY username ASC`); err != nil {
		return nil, err
	}
	for i := range users {
		users[i].CreatedAt = users[i].CreatedAt.UTC()
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE app_users SET password = ?, updated_at = ? WHERE username = ?
	`), password, time.Now().UTC(), username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// rebind converts ? placeholders for whichever driver q belongs to.
func rebind(q sqlx.QueryerContext, query string) string {
	if b, ok := q.(interface{ Rebind(string) string }); ok {
		return b.Rebind(query)
	}
	return query
}

func promoKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func utcProducts(products []domain.Product) []domain.Product {
	for i := range products {
		products[i].CreatedAt = products[i].CreatedAt.UTC()
		products[i].UpdatedAt = products[i].UpdatedAt.UTC()
	}
	return products
}

func utcPromotion(p *domain.Promotion) {
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
}
