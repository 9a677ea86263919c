package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
)

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// them unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tiers (
		id         UUID PRIMARY KEY,
		level      INT NOT NULL,
		name       TEXT NOT NULL,
		parent_id  UUID REFERENCES tiers (id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		id                UUID PRIMARY KEY,
		granter_tier_id   UUID NOT NULL REFERENCES tiers (id),
		recipient_tier_id UUID NOT NULL REFERENCES tiers (id),
		component         TEXT NOT NULL,
		proposal_id       UUID,
		amount_rupees     BIGINT NOT NULL CHECK (amount_rupees > 0),
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS releases (
		id            UUID PRIMARY KEY,
		allocation_id UUID NOT NULL REFERENCES allocations (id),
		kind          TEXT NOT NULL,
		amount_rupees BIGINT NOT NULL CHECK (amount_rupees <> 0),
		release_date  TIMESTAMPTZ NOT NULL,
		released_by   TEXT NOT NULL,
		remarks       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	// The required access pattern: available() is one indexed aggregation
	// over releases by allocation.
	`CREATE INDEX IF NOT EXISTS releases_allocation_idx ON releases (allocation_id)`,
	`CREATE TABLE IF NOT EXISTS proposals (
		id                    UUID PRIMARY KEY,
		submitter_tier_id     UUID NOT NULL REFERENCES tiers (id),
		component             TEXT NOT NULL,
		estimated_cost_rupees BIGINT NOT NULL CHECK (estimated_cost_rupees > 0),
		status                TEXT NOT NULL,
		decision_reason       TEXT,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS proposals_status_idx ON proposals (status)`,
	`CREATE TABLE IF NOT EXISTS utilization_certificates (
		id                UUID PRIMARY KEY,
		recipient_tier_id UUID NOT NULL REFERENCES tiers (id),
		allocation_id     UUID NOT NULL REFERENCES allocations (id),
		component         TEXT NOT NULL,
		amount_rupees     BIGINT NOT NULL CHECK (amount_rupees > 0),
		period            TEXT NOT NULL,
		status            TEXT NOT NULL,
		decided_by        TEXT,
		decided_at        TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS uc_recipient_component_idx
		ON utilization_certificates (recipient_tier_id, component)`,
	`CREATE TABLE IF NOT EXISTS notification_events (
		id             UUID PRIMARY KEY,
		source_id      TEXT NOT NULL,
		kind           TEXT NOT NULL,
		audience_role  TEXT NOT NULL,
		audience_scope TEXT NOT NULL,
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		acknowledged   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS notification_audience_idx
		ON notification_events (audience_role, audience_scope)`,
	`CREATE TABLE IF NOT EXISTS notification_markers (
		event_source_id TEXT NOT NULL,
		audience_key    TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_source_id, audience_key)
	)`,
}
