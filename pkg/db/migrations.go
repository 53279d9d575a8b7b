// pkg/db/migrations.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id            UUID        PRIMARY KEY,
		plan               TEXT        NOT NULL DEFAULT 'free'
		                               CHECK (plan IN ('free', 'tier-1', 'tier-2', 'tier-3')),
		wallet_balance     BIGINT      NOT NULL DEFAULT 0 CHECK (wallet_balance >= 0),
		analyses_used      INTEGER     NOT NULL DEFAULT 0 CHECK (analyses_used >= 0),
		enrichments_used   INTEGER     NOT NULL DEFAULT 0 CHECK (enrichments_used >= 0),
		usage_reset_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		stripe_customer_id TEXT        UNIQUE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id              BIGSERIAL    PRIMARY KEY,
		user_id         UUID         NOT NULL REFERENCES accounts(user_id),
		amount          BIGINT       NOT NULL CHECK (amount <> 0),
		type            TEXT         NOT NULL CHECK (type IN ('debit', 'credit')),
		action_type     TEXT         NOT NULL,
		reason          TEXT         NOT NULL,
		balance_after   BIGINT       NOT NULL CHECK (balance_after >= 0),
		metadata        JSONB        NOT NULL DEFAULT '{}'::jsonb,
		idempotency_key VARCHAR(255),
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CHECK ((type = 'debit' AND amount < 0) OR (type = 'credit' AND amount > 0))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id
		ON wallet_transactions(user_id, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_wallet_transactions_idempotency
		ON wallet_transactions(user_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL`,
}

// RunMigrations creates the tables and indexes the service needs.
func RunMigrations(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	logger.Info("migrations completed", "statements", len(schema))
	return nil
}
