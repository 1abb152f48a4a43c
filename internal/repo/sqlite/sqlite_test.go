package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "netprobe.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_TargetLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	tgt := &domain.Target{Host: "example.com", ProbeType: domain.ProbeEcho, IntervalSeconds: 60}
	if err := s.Add(ctx, tgt); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.Get(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Host != "example.com" || got.Status != domain.TargetActive {
		t.Fatalf("unexpected target: %+v", got)
	}

	if err := s.SetStatus(ctx, tgt.ID, domain.TargetPaused); err != nil {
		t.Fatalf("set status: %v", err)
	}
	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("paused target should not list as active: %+v", active)
	}

	if err := s.Remove(ctx, tgt.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err = s.Get(ctx, tgt.ID)
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil after remove, got %+v", got)
	}
}

func TestStore_MeasurementRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id := domain.TargetID("T1")
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	ok := &domain.Measurement{
		TargetID:      id,
		Timestamp:     base,
		LatencyMS:     domain.Float(12.5),
		PacketLossPct: 0,
		JitterMS:      domain.Float(0.5),
		Success:       true,
	}
	fail := &domain.Measurement{
		TargetID:      id,
		Timestamp:     base.Add(time.Minute),
		PacketLossPct: 100,
		Success:       false,
		ErrorMessage:  "host unreachable",
	}
	if err := s.Insert(ctx, ok); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, fail); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Query(ctx, id, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].LatencyMS == nil || *got[0].LatencyMS != 12.5 {
		t.Fatalf("latency not preserved: %+v", got[0])
	}
	if got[1].LatencyMS != nil || got[1].JitterMS != nil {
		t.Fatalf("failed measurement should keep nil latency/jitter: %+v", got[1])
	}
	if got[1].ErrorMessage != "host unreachable" {
		t.Fatalf("error message not preserved: %+v", got[1])
	}
}
