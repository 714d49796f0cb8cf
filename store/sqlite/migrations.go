package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Escrow store (SQLite).
var Migrations = migrate.NewGroup("escrow")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_escrow_payments",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_payments (
    id           TEXT PRIMARY KEY,
    payer        TEXT NOT NULL DEFAULT '',
    payee        TEXT NOT NULL DEFAULT '',
    token        TEXT NOT NULL DEFAULT '',
    amount       TEXT NOT NULL DEFAULT '0',
    request_hash TEXT NOT NULL DEFAULT '',
    sequence     INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'open',
    completed_at TEXT,
    refunded_at  TEXT,
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_escrow_payments_payer ON escrow_payments (payer, created_at);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_payee ON escrow_payments (payee, created_at);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_status ON escrow_payments (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_account_stats",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_account_stats (
    address        TEXT PRIMARY KEY,
    total_paid     TEXT NOT NULL DEFAULT '0',
    total_received TEXT NOT NULL DEFAULT '0',
    sequence       INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_account_stats`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_policies",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_policies (
    account    TEXT PRIMARY KEY,
    windows    TEXT NOT NULL DEFAULT '[]',
    active     INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_policies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_approved_spenders",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_approved_spenders (
    account    TEXT NOT NULL,
    spender    TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (account, spender)
);

CREATE INDEX IF NOT EXISTS idx_escrow_spenders_account ON escrow_approved_spenders (account);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_approved_spenders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_escrow_services",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS escrow_services (
    id              TEXT PRIMARY KEY,
    provider        TEXT NOT NULL DEFAULT '',
    name            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    endpoint        TEXT NOT NULL DEFAULT '',
    payment_address TEXT NOT NULL DEFAULT '',
    base_price      TEXT NOT NULL DEFAULT '0',
    token           TEXT NOT NULL DEFAULT '',
    active          INTEGER NOT NULL DEFAULT 1,
    verified        INTEGER NOT NULL DEFAULT 0,
    total_requests  INTEGER NOT NULL DEFAULT 0,
    total_revenue   TEXT NOT NULL DEFAULT '0',
    tiers           TEXT NOT NULL DEFAULT '[]',
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_escrow_services_provider ON escrow_services (provider);
CREATE INDEX IF NOT EXISTS idx_escrow_services_active ON escrow_services (active);
CREATE INDEX IF NOT EXISTS idx_escrow_services_verified ON escrow_services (verified);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS escrow_services`)
				return err
			},
		},
	)
}
