package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/config"
	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/httpapi"
	"github.com/hamed0406/netprobe/internal/httpapi/middleware"
	"github.com/hamed0406/netprobe/internal/logging"
	"github.com/hamed0406/netprobe/internal/probe"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/repo/memory"
	"github.com/hamed0406/netprobe/internal/repo/postgres"
	"github.com/hamed0406/netprobe/internal/repo/sqlite"
	"github.com/hamed0406/netprobe/internal/scheduler"
	"github.com/hamed0406/netprobe/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets, measurements, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}

	echo := probe.NewPingProber(logger, probe.EchoOptions{
		Count:              cfg.PingCount,
		Timeout:            cfg.PingTimeout,
		Interval:           cfg.PingInterval,
		BackoffFactor:      cfg.BackoffFactor,
		Retries:            cfg.Retries,
		EarlyStopOnSuccess: cfg.EarlyStopOnSuccess,
	}, &probe.UDPPinger{}, &probe.RawBatchPinger{})

	dns := probe.NewDNSProber(logger, probe.DNSOptions{
		QueryCount: cfg.DNSQueryCount,
		RecordType: cfg.DNSRecordType,
		Timeout:    cfg.DNSTimeout,
	}, probe.NewSystemResolver(cfg.DNSTimeout))

	sched := scheduler.New(logger, clock.New(), targets, measurements,
		map[domain.ProbeType]probe.Prober{
			domain.ProbeEcho: echo,
			domain.ProbeDNS:  dns,
		},
		scheduler.Config{
			TickInterval:   cfg.TickInterval,
			ReloadInterval: cfg.TargetReloadInterval,
			MaxFanout:      cfg.MaxFanout,
		},
	)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler_start_failed", zap.Error(err))
	}

	api := httpapi.NewServer(logger, targets, measurements, sched, httpapi.Options{
		Keys: middleware.Keys{
			Public: cfg.PublicAPIKeys,
			Admin:  cfg.AdminAPIKeys,
		},
		RateLimitPerMin: cfg.RateLimitPerMin,
		StatsOptions: stats.Options{
			DecayPerMinute:         cfg.DecayPerMinute,
			RecentWindow:           time.Duration(cfg.RecentWindowMinutes) * time.Minute,
			RecentLossThresholdPct: cfg.RecentLossThreshold,
		},
		MaxStatsMinutes: cfg.MaxStatsMinutes,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_serve_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, srv.Shutdown(shutdownCtx))
	sched.Stop()
	shutdownErr = multierr.Append(shutdownErr, closeStore())
	if shutdownErr != nil {
		logger.Warn("shutdown_incomplete", zap.Error(shutdownErr))
	}
}

// openStores picks the backing store: postgres when DATABASE_URL is set,
// sqlite when SQLITE_PATH is set, an in-memory store otherwise.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TargetStore, repo.MeasurementStore, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		logger.Info("store_postgres")
		return pg, pg, func() error { pg.Close(); return nil }, nil
	case cfg.SQLitePath != "":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
		return db, db, db.Close, nil
	default:
		logger.Info("store_memory")
		m := memory.New()
		return m, m, func() error { return nil }, nil
	}
}
