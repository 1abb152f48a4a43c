package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"

	_ "modernc.org/sqlite"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.MeasurementStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS targets (
    id               TEXT PRIMARY KEY,
    host             TEXT NOT NULL,
    probe_type       TEXT NOT NULL,
    interval_seconds INTEGER NOT NULL,
    status           TEXT NOT NULL DEFAULT 'active',
    grp              TEXT,
    created_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS measurements (
    id              TEXT PRIMARY KEY,
    target_id       TEXT NOT NULL,
    ts              TIMESTAMP NOT NULL,
    latency_ms      REAL,
    packet_loss_pct REAL NOT NULL,
    jitter_ms       REAL,
    success         INTEGER NOT NULL,
    error_message   TEXT
);

CREATE INDEX IF NOT EXISTS idx_measurements_target_ts ON measurements (target_id, ts);
`

// Open opens (creating directories and tables as needed) a sqlite store at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.TargetActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, host, probe_type, interval_seconds, status, grp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(t.ID), t.Host, string(t.ProbeType), t.IntervalSeconds, string(t.Status), t.Group, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, host, probe_type, interval_seconds, status, grp, created_at
		   FROM targets WHERE id = ?`, string(id))
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host, probe_type, interval_seconds, status, grp, created_at
		   FROM targets
		  WHERE status = 'active'
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, id domain.TargetID, status domain.TargetStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE targets SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("set target status: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}

// ---- MeasurementStore ----

func (s *Store) Insert(ctx context.Context, m *domain.Measurement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements
		   (id, target_id, ts, latency_ms, packet_loss_pct, jitter_ms, success, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.TargetID), m.Timestamp, m.LatencyMS, m.PacketLossPct, m.JitterMS, m.Success, m.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_id, ts, latency_ms, packet_loss_pct, jitter_ms, success, error_message
		   FROM measurements
		  WHERE target_id = ? AND ts >= ? AND ts <= ?
		  ORDER BY ts`,
		string(id), start, end)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []domain.Measurement
	for rows.Next() {
		var (
			m        domain.Measurement
			targetID string
			latency  sql.NullFloat64
			jitter   sql.NullFloat64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&m.ID, &targetID, &m.Timestamp, &latency,
			&m.PacketLossPct, &jitter, &m.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.TargetID = domain.TargetID(targetID)
		if latency.Valid {
			v := latency.Float64
			m.LatencyMS = &v
		}
		if jitter.Valid {
			v := jitter.Float64
			m.JitterMS = &v
		}
		m.ErrorMessage = errMsg.String
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(r rowScanner) (*domain.Target, error) {
	var (
		t         domain.Target
		id        string
		probeType string
		status    string
		group     sql.NullString
	)
	if err := r.Scan(&id, &t.Host, &probeType, &t.IntervalSeconds, &status, &group, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.ProbeType = domain.ProbeType(probeType)
	t.Status = domain.TargetStatus(status)
	t.Group = group.String
	return &t, nil
}
