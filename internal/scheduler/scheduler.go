package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/probe"
	"github.com/hamed0406/netprobe/internal/repo"
)

var ErrUnknownTarget = errors.New("target not scheduled")

type Config struct {
	TickInterval   time.Duration // due-check cadence
	ReloadInterval time.Duration // registry re-sync cadence
	MaxFanout      int           // echo probes dispatched concurrently per tick
}

// Scheduler owns per-target runtime state, decides which targets are due,
// dispatches to the matching prober and writes results through the
// measurement store. Exactly one probe runs per target at any time.
type Scheduler struct {
	log      *zap.Logger
	clock    clock.Clock
	registry repo.TargetRegistry
	store    repo.MeasurementStore
	probers  map[domain.ProbeType]probe.Prober
	cfg      Config

	mu      sync.Mutex
	targets map[domain.TargetID]*scheduledTarget
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// scheduledTarget is the runtime state for one active target. probing is the
// sole concurrency guard: it is set while claiming the target under the lock
// and cleared unconditionally when the probe finishes.
type scheduledTarget struct {
	id        domain.TargetID
	host      string
	probeType domain.ProbeType
	interval  time.Duration
	lastProbe time.Time // zero means never probed, i.e. immediately due
	probing   bool
}

// probeJob is an immutable snapshot handed to the dispatch path so probing
// never reads shared state without the lock.
type probeJob struct {
	id        domain.TargetID
	host      string
	probeType domain.ProbeType
}

func New(
	log *zap.Logger,
	clk clock.Clock,
	registry repo.TargetRegistry,
	store repo.MeasurementStore,
	probers map[domain.ProbeType]probe.Prober,
	cfg Config,
) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.ReloadInterval <= 0 {
		cfg.ReloadInterval = 5 * time.Minute
	}
	if cfg.MaxFanout < 1 {
		cfg.MaxFanout = 1
	}
	return &Scheduler{
		log:      log,
		clock:    clk,
		registry: registry,
		store:    store,
		probers:  probers,
		cfg:      cfg,
		targets:  make(map[domain.TargetID]*scheduledTarget),
	}
}

// Start loads the target set and begins the tick loop. The loop stops when
// Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.ReloadTargets(runCtx); err != nil {
		// the reload ticker retries; starting with an empty set is fine
		s.log.Warn("initial_target_load_failed", zap.Error(err))
	}
	go s.run(runCtx)
	s.log.Info("scheduler_started",
		zap.Duration("tick_interval", s.cfg.TickInterval),
		zap.Duration("reload_interval", s.cfg.ReloadInterval),
	)
	return nil
}

// Stop halts the tick loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler_stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	tick := s.clock.Ticker(s.cfg.TickInterval)
	defer tick.Stop()
	reload := s.clock.Ticker(s.cfg.ReloadInterval)
	defer reload.Stop()

	// immediate pass
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.tick(ctx)
		case <-reload.C:
			if err := s.ReloadTargets(ctx); err != nil {
				s.log.Warn("target_reload_failed", zap.Error(err))
			}
		}
	}
}

// tick claims every due target and dispatches it. Echo targets fan out as a
// concurrent batch up to MaxFanout; DNS targets and echo overflow run one at
// a time to bound resource usage. A per-target failure never aborts the pass.
func (s *Scheduler) tick(ctx context.Context) {
	due := s.claimDue()
	if len(due) == 0 {
		return
	}

	var batch, sequential []probeJob
	for _, j := range due {
		if j.probeType == domain.ProbeEcho && len(batch) < s.cfg.MaxFanout {
			batch = append(batch, j)
		} else {
			sequential = append(sequential, j)
		}
	}

	var errs error
	if len(batch) > 0 {
		g := new(errgroup.Group)
		for _, j := range batch {
			j := j
			g.Go(func() error { return s.probeTarget(ctx, j) })
		}
		errs = multierr.Append(errs, g.Wait())
	}
	for _, j := range sequential {
		if ctx.Err() != nil {
			// claimed but no longer dispatchable; release the guard
			s.finishProbe(j.id, false)
			continue
		}
		errs = multierr.Append(errs, s.probeTarget(ctx, j))
	}
	if errs != nil {
		s.log.Warn("tick_completed_with_errors",
			zap.Int("due", len(due)),
			zap.Error(errs),
		)
	}
}

// claimDue selects targets whose interval elapsed and marks them probing in
// the same critical section, so no later claim can double-dispatch them.
func (s *Scheduler) claimDue() []probeJob {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []probeJob
	for _, st := range s.targets {
		if st.probing {
			continue
		}
		if !st.lastProbe.IsZero() && now.Sub(st.lastProbe) < st.interval {
			continue
		}
		st.probing = true
		due = append(due, probeJob{id: st.id, host: st.host, probeType: st.probeType})
	}
	return due
}

// probeTarget runs one probe and persists its measurement. The probing flag
// is cleared on every exit path, panics included, so a single failure can
// never wedge a target.
func (s *Scheduler) probeTarget(ctx context.Context, j probeJob) (err error) {
	probed := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic for target %s: %v", j.id, r)
			s.log.Error("probe_panic", zap.String("target_id", string(j.id)), zap.Any("panic", r))
		}
		s.finishProbe(j.id, probed)
	}()

	prober, ok := s.probers[j.probeType]
	if !ok {
		s.log.Warn("unknown_probe_type",
			zap.String("target_id", string(j.id)),
			zap.String("probe_type", string(j.probeType)),
		)
		return fmt.Errorf("unknown probe type %q for target %s", j.probeType, j.id)
	}

	res, perr := prober.Probe(ctx, j.host)
	if perr != nil {
		// no measurement this cycle; the target is eligible again next tick
		s.log.Warn("probe_error",
			zap.String("target_id", string(j.id)),
			zap.String("host", j.host),
			zap.Error(perr),
		)
		return fmt.Errorf("probe %s: %w", j.id, perr)
	}
	probed = true

	m := &domain.Measurement{
		ID:            uuid.NewString(),
		TargetID:      j.id,
		Timestamp:     s.clock.Now().UTC(),
		LatencyMS:     res.LatencyMS,
		PacketLossPct: res.PacketLossPct,
		JitterMS:      res.JitterMS,
		Success:       res.Success,
		ErrorMessage:  res.Message,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		// best effort: retry once, then give the cycle up without stalling others
		s.log.Warn("measurement_write_retry",
			zap.String("target_id", string(j.id)),
			zap.Error(err),
		)
		if err2 := s.store.Insert(ctx, m); err2 != nil {
			s.log.Warn("measurement_write_failed",
				zap.String("target_id", string(j.id)),
				zap.Error(err2),
			)
			return fmt.Errorf("insert measurement for %s: %w", j.id, err2)
		}
	}

	s.log.Debug("probe_completed",
		zap.String("target_id", string(j.id)),
		zap.String("host", j.host),
		zap.Bool("success", res.Success),
		zap.Float64("packet_loss_pct", res.PacketLossPct),
	)
	return nil
}

func (s *Scheduler) finishProbe(id domain.TargetID, probed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.targets[id]
	if !ok {
		// removed by a reload while mid-probe; nothing to clear
		return
	}
	st.probing = false
	if probed {
		st.lastProbe = s.clock.Now()
	}
}

// ForceProbe dispatches a probe immediately, bypassing the interval check.
// It still honors the one-probe-per-target guarantee: a no-op when the
// target is already probing.
func (s *Scheduler) ForceProbe(ctx context.Context, id domain.TargetID) error {
	s.mu.Lock()
	st, ok := s.targets[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	if st.probing {
		s.mu.Unlock()
		return nil
	}
	st.probing = true
	j := probeJob{id: st.id, host: st.host, probeType: st.probeType}
	s.mu.Unlock()

	return s.probeTarget(ctx, j)
}

// ReloadTargets re-synchronizes the scheduled set from the registry.
// Entries whose target disappeared or went inactive are dropped; surviving
// entries keep their lastProbe time and in-flight probing flag so a probe
// started just before the reload cannot be double-dispatched.
func (s *Scheduler) ReloadTargets(ctx context.Context) error {
	ts, err := s.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active targets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[domain.TargetID]*scheduledTarget, len(ts))
	added := 0
	for i := range ts {
		t := &ts[i]
		if old, ok := s.targets[t.ID]; ok {
			old.host = t.Host
			old.probeType = t.ProbeType
			old.interval = t.Interval()
			next[t.ID] = old
			continue
		}
		next[t.ID] = &scheduledTarget{
			id:        t.ID,
			host:      t.Host,
			probeType: t.ProbeType,
			interval:  t.Interval(),
		}
		added++
	}
	removed := len(s.targets) - (len(next) - added)
	s.targets = next

	s.log.Info("targets_reloaded",
		zap.Int("scheduled", len(next)),
		zap.Int("added", added),
		zap.Int("removed", removed),
	)
	return nil
}

type TargetState struct {
	Host          string           `json:"host"`
	ProbeType     domain.ProbeType `json:"probe_type"`
	LastProbe     time.Time        `json:"last_probe"`
	NextProbeInMS int64            `json:"next_probe_in_ms"`
	Probing       bool             `json:"probing"`
}

type Status struct {
	Running     bool                             `json:"running"`
	TargetCount int                              `json:"target_count"`
	Targets     map[domain.TargetID]TargetState `json:"targets"`
}

func (s *Scheduler) Status() Status {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Status{
		Running:     s.running,
		TargetCount: len(s.targets),
		Targets:     make(map[domain.TargetID]TargetState, len(s.targets)),
	}
	for id, st := range s.targets {
		next := time.Duration(0)
		if !st.lastProbe.IsZero() {
			if d := st.interval - now.Sub(st.lastProbe); d > 0 {
				next = d
			}
		}
		out.Targets[id] = TargetState{
			Host:          st.host,
			ProbeType:     st.probeType,
			LastProbe:     st.lastProbe,
			NextProbeInMS: next.Milliseconds(),
			Probing:       st.probing,
		}
	}
	return out
}
