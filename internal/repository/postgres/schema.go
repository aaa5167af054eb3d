// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"balance-ledger/internal/repository"
	"balance-ledger/pkg/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_balances (
		user_id        TEXT PRIMARY KEY,
		balance        NUMERIC(20, 2) NOT NULL CHECK (balance >= 0),
		currency       TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		last_updated   TIMESTAMPTZ NOT NULL,
		bonus          NUMERIC(20, 2),
		bonus_given_at TIMESTAMPTZ,
		transactions   JSONB NOT NULL DEFAULT '[]'::jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS payout_requests (
		id              UUID PRIMARY KEY,
		kind            TEXT NOT NULL CHECK (kind IN ('withdraw', 'cashout')),
		user_id         TEXT NOT NULL,
		user_email      TEXT NOT NULL DEFAULT '',
		amount          NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
		status          TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ,
		wallet_id       TEXT NOT NULL DEFAULT '',
		wallet_id_name  TEXT NOT NULL DEFAULT '',
		wallet_network  TEXT NOT NULL DEFAULT '',
		token_id        TEXT NOT NULL DEFAULT '',
		secret_code     TEXT NOT NULL DEFAULT '',
		screenshot_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payout_requests_user ON payout_requests (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payout_requests_kind ON payout_requests (kind, created_at)`,
}

// Migrate creates the tables used by the Postgres repositories if they do not exist.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	return db.WithTx(ctx, conn, func(tx *sqlx.Tx) error {
		return applySchema(ctx, tx)
	})
}

func applySchema(ctx context.Context, q repository.DBExecutor) error {
	for _, stmt := range schema {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
