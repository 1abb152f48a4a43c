package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.MeasurementStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, host, probe_type, interval_seconds, status, grp, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(t.ID), t.Host, string(t.ProbeType), t.IntervalSeconds, string(t.Status), t.Group, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, host, probe_type, interval_seconds, status, grp, created_at
		   FROM targets WHERE id = $1`, string(id))
	t, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
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
	_, err := s.pool.Exec(ctx,
		`UPDATE targets SET status = $2 WHERE id = $1`, string(id), string(status))
	if err != nil {
		return fmt.Errorf("set target status: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO measurements
		   (id, target_id, ts, latency_ms, packet_loss_pct, jitter_ms, success, error_message)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, string(m.TargetID), m.Timestamp, m.LatencyMS, m.PacketLossPct, m.JitterMS, m.Success, m.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.Measurement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_id, ts, latency_ms, packet_loss_pct, jitter_ms, success, error_message
		   FROM measurements
		  WHERE target_id = $1 AND ts >= $2 AND ts <= $3
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
			errMsg   *string
		)
		if err := rows.Scan(&m.ID, &targetID, &m.Timestamp, &m.LatencyMS,
			&m.PacketLossPct, &m.JitterMS, &m.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.TargetID = domain.TargetID(targetID)
		if errMsg != nil {
			m.ErrorMessage = *errMsg
		}
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
		group     *string
	)
	if err := r.Scan(&id, &t.Host, &probeType, &t.IntervalSeconds, &status, &group, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.ProbeType = domain.ProbeType(probeType)
	t.Status = domain.TargetStatus(status)
	if group != nil {
		t.Group = *group
	}
	return &t, nil
}
