package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS countries (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			position INTEGER NOT NULL DEFAULT 0,
			postage_multiplier NUMERIC(8,4) NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS card_types (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL DEFAULT 0,
			weight NUMERIC(10,3) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sizes (
			id INTEGER PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id),
			name TEXT NOT NULL,
			is_in_stock BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_guest BOOLEAN NOT NULL DEFAULT TRUE,
			signup_device TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS baskets (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			country_id INTEGER NOT NULL DEFAULT 0,
			order_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_baskets_user ON baskets (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS basket_items (
			id UUID PRIMARY KEY,
			basket_id UUID NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
			size_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'created',
			email TEXT NOT NULL,
			use_card_holder_contact BOOLEAN NOT NULL DEFAULT TRUE,
			pay_by_telephone BOOLEAN NOT NULL DEFAULT FALSE,
			basket_id UUID NOT NULL REFERENCES baskets(id),
			user_id UUID NOT NULL REFERENCES users(id),
			billing_contact JSONB NOT NULL,
			delivery_contact JSONB,
			card JSONB,
			postage NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			dispatched_at TIMESTAMPTZ
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
