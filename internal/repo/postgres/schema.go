package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS targets (
    id               TEXT PRIMARY KEY,
    host             TEXT NOT NULL,
    probe_type       TEXT NOT NULL,
    interval_seconds INT  NOT NULL,
    status           TEXT NOT NULL DEFAULT 'active',
    grp              TEXT,
    created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS measurements (
    id              TEXT PRIMARY KEY,
    target_id       TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
    ts              TIMESTAMPTZ NOT NULL,
    latency_ms      DOUBLE PRECISION,
    packet_loss_pct DOUBLE PRECISION NOT NULL,
    jitter_ms       DOUBLE PRECISION,
    success         BOOLEAN NOT NULL,
    error_message   TEXT
);

CREATE INDEX IF NOT EXISTS idx_measurements_target_ts ON measurements (target_id, ts);
`

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
