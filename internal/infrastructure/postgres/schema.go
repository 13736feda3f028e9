package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Exactly one of user_id or guest_email identifies the buyer. Pending orders are indexed by expiry for the sweep.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		price      NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock      INT NOT NULL CHECK (stock >= 0),
		image      TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS buyers (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		phone TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                TEXT PRIMARY KEY,
		code              TEXT NOT NULL UNIQUE,
		user_id           TEXT,
		user_name         TEXT,
		user_email        TEXT,
		user_phone        TEXT,
		guest_name        TEXT,
		guest_email       TEXT,
		guest_phone       TEXT,
		items             JSONB NOT NULL,
		address           JSONB NOT NULL,
		payment_method    TEXT NOT NULL,
		payment_status    TEXT NOT NULL,
		status            TEXT NOT NULL,
		transaction_id    TEXT NOT NULL DEFAULT '',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		total_price       NUMERIC(12,2) NOT NULL,
		discount          NUMERIC(12,2) NOT NULL,
		shipping          NUMERIC(12,2) NOT NULL,
		final_total       NUMERIC(12,2) NOT NULL,
		applied_coupons   TEXT[] NOT NULL DEFAULT '{}',
		courier           TEXT NOT NULL DEFAULT '',
		tracking_id       TEXT NOT NULL DEFAULT '',
		expires_at        TIMESTAMPTZ,
		version           BIGINT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		CHECK ((user_id IS NULL) <> (guest_email IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_intent_idx
		ON orders (payment_intent_id) WHERE payment_intent_id <> ''`,
	`CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_pending_expiry_idx
		ON orders (expires_at) WHERE status = 'Pending' AND payment_status = 'Pending'`,
	`CREATE SEQUENCE IF NOT EXISTS order_code_seq`,
	// Codes written before the sequence existed keep counting upward.
	`SELECT setval('order_code_seq', s.m)
		FROM (SELECT MAX(CAST(substring(code FROM '[0-9]+$') AS BIGINT)) AS m FROM orders) s
		WHERE s.m IS NOT NULL AND s.m > (SELECT last_value FROM order_code_seq)`,
}

// Migrate creates the tables the service needs. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate step %d: %w", i, err)
		}
	}
	return nil
}
