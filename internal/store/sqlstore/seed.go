package sqlstore

import (
	"context"
	"fmt"
	"time"

	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/seed"
)

// SeedDemo loads the demo catalog into an empty database. It is a no-op
// once any product exists.
func (s *Store) SeedDemo(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data := seed.Demo(time.Now())
	return s.WithTx(ctx, func(tx store.Tx) error {
		for _, p := range data.Products {
			if err := tx.InsertProduct(ctx, p); err != nil {
				return fmt.Errorf("seed product %s: %w", p.SKU, err)
			}
		}
		for _, m := range data.Movements {
			if err := tx.InsertMovement(ctx, m); err != nil {
				return fmt.Errorf("seed movement: %w", err)
			}
		}
		sqlTx := tx.(*txStore).tx
		for _, c := range data.Customers {
			if _, err := sqlTx.NamedExecContext(ctx, `
				INSERT INTO customers (`+customerColumns+`)
				VALUES (:id, :name, :email, :phone, :address, :loyalty_points, :status, :created_at)
			`, c); err != nil {
				return fmt.Errorf("seed customer %s: %w", c.Name, err)
			}
		}
		for _, p := range data.Promotions {
			if _, err := sqlTx.NamedExecContext(ctx, `
				INSERT INTO promotions (`+promotionColumns+`)
				VALUES (:id, :name, :code, :description, :type, :value, :minimum_purchase_cents, :usage_limit,
					:usage_count, :start_date, :end_date, :active, :created_at)
			`, p); err != nil {
				return fmt.Errorf("seed promotion %s: %w", p.Code, err)
			}
		}
		return nil
	})
}

// SeedUsers creates the bootstrap accounts when app_users is empty.
func (s *Store) SeedUsers(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM app_users`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	users, err := seed.Users(time.Now())
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.CreateUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
