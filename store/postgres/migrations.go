package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hooks store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("hooks")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_hooks_subscriptions",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hooks_subscriptions (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    secret      TEXT NOT NULL DEFAULT '',
    event_type  TEXT NOT NULL DEFAULT '',
    api_version TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    paused      BOOLEAN NOT NULL DEFAULT FALSE,
    max_retries INT NOT NULL DEFAULT 0,
    headers     JSONB NOT NULL DEFAULT '{}',
    rate_limit  INT NOT NULL DEFAULT 0,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hooks_subscriptions_tenant ON hooks_subscriptions (tenant_id);
CREATE INDEX IF NOT EXISTS idx_hooks_subscriptions_resolve ON hooks_subscriptions (tenant_id, event_type) WHERE active AND NOT paused;
CREATE UNIQUE INDEX IF NOT EXISTS idx_hooks_subscriptions_unique ON hooks_subscriptions (tenant_id, url, event_type);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hooks_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hooks_installations",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hooks_installations (
    id             TEXT PRIMARY KEY,
    tenant_id      TEXT NOT NULL DEFAULT '',
    app_name       TEXT NOT NULL DEFAULT '',
    client_id      TEXT NOT NULL DEFAULT '',
    webhook_url    TEXT NOT NULL DEFAULT '',
    secret         TEXT NOT NULL DEFAULT '',
    granted_scopes TEXT[] NOT NULL DEFAULT '{}',
    status         TEXT NOT NULL DEFAULT 'active',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hooks_installations_tenant ON hooks_installations (tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hooks_installations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hooks_deliveries",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hooks_deliveries (
    id              TEXT PRIMARY KEY,
    event_id        TEXT NOT NULL DEFAULT '',
    tenant_id       TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL DEFAULT 'webhook',
    subscription_id TEXT NOT NULL DEFAULT '',
    installation_id TEXT NOT NULL DEFAULT '',
    event_type      TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    payload         JSONB,
    status          TEXT NOT NULL DEFAULT 'pending',
    attempt_number  INT NOT NULL DEFAULT 1,
    max_attempts    INT NOT NULL DEFAULT 0,
    next_retry_at   TIMESTAMPTZ,
    triggered_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    delivered_at    TIMESTAMPTZ,
    response_status INT NOT NULL DEFAULT 0,
    response_body   TEXT NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    duration_ms     INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_due ON hooks_deliveries (next_retry_at) WHERE status IN ('pending', 'retrying');
CREATE UNIQUE INDEX IF NOT EXISTS idx_hooks_deliveries_event ON hooks_deliveries (event_id);
CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_subscription ON hooks_deliveries (subscription_id);
CREATE INDEX IF NOT EXISTS idx_hooks_deliveries_tenant ON hooks_deliveries (tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hooks_deliveries`)
				return err
			},
		},
	)
}
