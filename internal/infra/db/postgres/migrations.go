package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registrations (
	id UUID PRIMARY KEY,
	registration_number TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE TABLE IF NOT EXISTS course_enrollments (
	id UUID PRIMARY KEY,
	registration_id UUID NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
	course_name TEXT NOT NULL,
	enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE TABLE IF NOT EXISTS course_prices (
	course_name TEXT PRIMARY KEY,
	price NUMERIC(10,2) NOT NULL,
	currency TEXT NOT NULL DEFAULT 'cad'
);`,
	`CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	registration_id UUID NOT NULL REFERENCES registrations(id),
	enrollment_id UUID NOT NULL REFERENCES course_enrollments(id),
	course_name TEXT NOT NULL,
	total_price NUMERIC(10,2) NOT NULL,
	payment_amount NUMERIC(10,2) NOT NULL,
	tax_amount NUMERIC(10,2) NOT NULL,
	final_amount NUMERIC(10,2) NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_method TEXT NOT NULL DEFAULT '',
	card_holder TEXT NOT NULL DEFAULT '',
	card_last_four TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	intent_id TEXT NOT NULL DEFAULT '',
	charge_id TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	transaction_id TEXT UNIQUE NOT NULL,
	invoice_number TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);`,
	`CREATE INDEX IF NOT EXISTS payments_intent_idx ON payments (intent_id);`,
	`CREATE INDEX IF NOT EXISTS payments_status_created_idx ON payments (status, created_at);`,
	`CREATE TABLE IF NOT EXISTS payment_otps (
	id UUID PRIMARY KEY,
	payment_id UUID UNIQUE NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
	code TEXT NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	attempts INT NOT NULL DEFAULT 0,
	ip_address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	verified_at TIMESTAMPTZ
);`,
	`CREATE INDEX IF NOT EXISTS payment_otps_expires_idx ON payment_otps (expires_at, is_verified);`,
	`CREATE TABLE IF NOT EXISTS invoices (
	id UUID PRIMARY KEY,
	payment_id UUID UNIQUE NOT NULL REFERENCES payments(id),
	invoice_number TEXT UNIQUE NOT NULL,
	amount NUMERIC(10,2) NOT NULL,
	tax_amount NUMERIC(10,2) NOT NULL,
	total_amount NUMERIC(10,2) NOT NULL,
	currency TEXT NOT NULL,
	issued_at TIMESTAMPTZ NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS notification_log (
	id TEXT PRIMARY KEY,
	payment_id UUID NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sent BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`,
	`CREATE SEQUENCE IF NOT EXISTS invoice_number_seq START 1;`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
