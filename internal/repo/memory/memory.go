package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.MeasurementStore = (*Store)(nil)

var ErrNotFound = errors.New("not found")

type Store struct {
	mu           sync.RWMutex
	targets      map[domain.TargetID]*domain.Target
	measurements []*domain.Measurement
}

func New() *Store {
	return &Store{
		targets:      make(map[domain.TargetID]*domain.Target),
		measurements: make([]*domain.Measurement, 0, 256),
	}
}

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.TargetActive
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *Store) ListActive(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.Status == domain.TargetActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) SetStatus(ctx context.Context, id domain.TargetID, status domain.TargetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *Store) Remove(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

func (m *Store) Insert(ctx context.Context, r *domain.Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	m.measurements = append(m.measurements, &cp)
	return nil
}

func (m *Store) Query(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Measurement
	for _, r := range m.measurements {
		if r.TargetID != id {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
