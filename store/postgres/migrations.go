package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the allowance store.
var Migrations = migrate.NewGroup("allowance")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_allowance_accounts",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS allowance_accounts (
    id                   TEXT PRIMARY KEY,
    owner                TEXT NOT NULL,
    delegate             TEXT NOT NULL,
    spending_cap         TEXT NOT NULL DEFAULT '0',
    total_spent          TEXT NOT NULL DEFAULT '0',
    per_tx_limit         TEXT NOT NULL DEFAULT '0',
    quota                TEXT NOT NULL DEFAULT '0',
    quota_spent          TEXT NOT NULL DEFAULT '0',
    quota_reset_interval TEXT NOT NULL DEFAULT '0',
    last_reset           TEXT NOT NULL DEFAULT '0',
    guards               SMALLINT NOT NULL DEFAULT 7,
    version              BIGINT NOT NULL DEFAULT 0,
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_allowance_accounts_owner ON allowance_accounts (owner);
CREATE INDEX IF NOT EXISTS idx_allowance_accounts_delegate ON allowance_accounts (delegate);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS allowance_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_allowance_receipts",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS allowance_receipts (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL,
    caller      TEXT NOT NULL,
    recipient   TEXT NOT NULL,
    amount      TEXT NOT NULL DEFAULT '0',
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    quota_reset BOOLEAN NOT NULL DEFAULT FALSE,
    total_spent TEXT NOT NULL DEFAULT '0',
    quota_spent TEXT NOT NULL DEFAULT '0',
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_allowance_receipts_account ON allowance_receipts (account_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_allowance_receipts_status ON allowance_receipts (account_id, status);
CREATE INDEX IF NOT EXISTS idx_allowance_receipts_timestamp ON allowance_receipts (timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS allowance_receipts`)
				return err
			},
		},
	)
}
