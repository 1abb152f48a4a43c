package repo

import (
	"context"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

// TargetRegistry is the read side the scheduler consumes. Target CRUD is
// owned by the concrete stores.
type TargetRegistry interface {
	ListActive(ctx context.Context) ([]domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
}

// TargetStore adds the write side used by the API layer.
type TargetStore interface {
	TargetRegistry
	Add(ctx context.Context, t *domain.Target) error
	SetStatus(ctx context.Context, id domain.TargetID, status domain.TargetStatus) error
	Remove(ctx context.Context, id domain.TargetID) error
}

// MeasurementStore is append-only from the probing core's perspective.
// Query returns measurements ascending by timestamp.
type MeasurementStore interface {
	Insert(ctx context.Context, m *domain.Measurement) error
	Query(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.Measurement, error)
}
