package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/httpapi/middleware"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/scheduler"
	"github.com/hamed0406/netprobe/internal/stats"
)

// SchedulerControl is the slice of the scheduler surface the API needs.
type SchedulerControl interface {
	ForceProbe(ctx context.Context, id domain.TargetID) error
	ReloadTargets(ctx context.Context) error
	Status() scheduler.Status
}

type Options struct {
	Keys            middleware.Keys
	RateLimitPerMin int
	StatsOptions    stats.Options
	MaxStatsMinutes int // upper bound on the requested stats window
}

type Server struct {
	Logger       *zap.Logger
	Targets      repo.TargetStore
	Measurements repo.MeasurementStore
	Sched        SchedulerControl
	Opts         Options
}

func NewServer(l *zap.Logger, ts repo.TargetStore, ms repo.MeasurementStore, sched SchedulerControl, opts Options) *Server {
	if opts.MaxStatsMinutes <= 0 {
		opts.MaxStatsMinutes = 24 * 60
	}
	return &Server{Logger: l, Targets: ts, Measurements: ms, Sched: sched, Opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(s.Opts.RateLimitPerMin, s.Opts.RateLimitPerMin/2))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAny(s.Opts.Keys))
			r.Get("/targets", s.handleListTargets)
			r.Get("/targets/{id}/stats", s.handleTargetStats)
			r.Get("/scheduler/status", s.handleSchedulerStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.Opts.Keys))
			r.Post("/targets", s.handleAddTarget)
			r.Delete("/targets/{id}", s.handleRemoveTarget)
			r.Post("/targets/{id}/probe", s.handleForceProbe)
			r.Post("/scheduler/reload", s.handleReload)
		})
	})

	return r
}

type addPayload struct {
	Host            string `json:"host"`
	ProbeType       string `json:"probe_type"`
	IntervalSeconds int    `json:"interval_seconds"`
	Group           string `json:"group"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Host == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	pt := domain.ProbeType(p.ProbeType)
	if pt == "" {
		pt = domain.ProbeEcho
	}
	if pt != domain.ProbeEcho && pt != domain.ProbeDNS {
		http.Error(w, "unknown probe_type", http.StatusBadRequest)
		return
	}
	if p.IntervalSeconds <= 0 {
		p.IntervalSeconds = 60
	}

	t := &domain.Target{
		Host:            p.Host,
		ProbeType:       pt,
		IntervalSeconds: p.IntervalSeconds,
		Group:           p.Group,
		Status:          domain.TargetActive,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Targets.Add(r.Context(), t); err != nil {
		s.Logger.Warn("target_add_failed", zap.String("host", p.Host), zap.Error(err))
		http.Error(w, "could not add", http.StatusInternalServerError)
		return
	}

	if err := s.Sched.ReloadTargets(r.Context()); err != nil {
		s.Logger.Warn("reload_after_add_failed", zap.Error(err))
	}
	// first measurement lands shortly after the add without waiting a tick
	go func(id domain.TargetID) {
		if err := s.Sched.ForceProbe(context.Background(), id); err != nil {
			s.Logger.Debug("initial_probe_failed", zap.String("target_id", string(id)), zap.Error(err))
		}
	}(t.ID)

	s.Logger.Info("target_added",
		zap.String("target_id", string(t.ID)),
		zap.String("host", t.Host),
		zap.String("probe_type", string(t.ProbeType)),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.ListActive(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ts)
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Targets.Remove(r.Context(), id); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.Sched.ReloadTargets(r.Context()); err != nil {
		s.Logger.Warn("reload_after_remove_failed", zap.Error(err))
	}
	s.Logger.Info("target_removed", zap.String("target_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceProbe(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Sched.ForceProbe(r.Context(), id); err != nil {
		if errors.Is(err, scheduler.ErrUnknownTarget) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.Logger.Warn("force_probe_failed", zap.String("target_id", string(id)), zap.Error(err))
		http.Error(w, "probe failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"probed": string(id)})
}

func (s *Server) handleTargetStats(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))

	minutes := 60
	if v := r.URL.Query().Get("minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad minutes", http.StatusBadRequest)
			return
		}
		minutes = n
	}
	if minutes > s.Opts.MaxStatsMinutes {
		minutes = s.Opts.MaxStatsMinutes
	}

	now := time.Now().UTC()
	start := now.Add(-time.Duration(minutes) * time.Minute)
	ms, err := s.Measurements.Query(r.Context(), id, start, now)
	if err != nil {
		s.Logger.Warn("stats_query_failed", zap.String("target_id", string(id)), zap.Error(err))
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	bucket := time.Minute
	if minutes > 6*60 {
		bucket = 5 * time.Minute
	}
	points := stats.Window(ms, start, now, bucket)
	agg := stats.Aggregate(points, now, s.Opts.StatsOptions)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stats":      agg,
		"datapoints": points,
	})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Sched.Status())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Sched.ReloadTargets(r.Context()); err != nil {
		s.Logger.Warn("manual_reload_failed", zap.Error(err))
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Sched.Status())
}
