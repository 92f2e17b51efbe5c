package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/config"
	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/health"
	"github.com/hamed0406/healthmon/internal/httpapi"
	"github.com/hamed0406/healthmon/internal/logging"
	"github.com/hamed0406/healthmon/internal/metrics"
	"github.com/hamed0406/healthmon/internal/notify"
	"github.com/hamed0406/healthmon/internal/present"
	"github.com/hamed0406/healthmon/internal/probe"
	"github.com/hamed0406/healthmon/internal/repo"
	"github.com/hamed0406/healthmon/internal/repo/elastic"
	"github.com/hamed0406/healthmon/internal/repo/jsonl"
	"github.com/hamed0406/healthmon/internal/repo/memory"
	"github.com/hamed0406/healthmon/internal/repo/postgres"
	"github.com/hamed0406/healthmon/internal/scheduler"
)

const stopGrace = 30 * time.Second

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, "healthmon:", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *postgres.Store
	if cfg.Endpoints.DatabaseURL != "" {
		db, err = postgres.New(ctx, cfg.Endpoints.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	probes, closeProbes := buildProbes(cfg, db)
	defer closeProbes()
	registry, err := probe.NewRegistry(probes...)
	if err != nil {
		return err
	}
	agg, err := health.New(logger, registry, cfg.Monitor.ProbeTimeout)
	if err != nil {
		return err
	}

	sink, err := buildSinks(ctx, cfg, db)
	if err != nil {
		return err
	}

	var alerts repo.AlertStore = memory.NewAlertStore()
	if db != nil {
		alerts = db
	}
	ledger := alert.NewLedger(cfg.Monitor.LedgerCapacity)
	if open, err := alerts.Open(ctx); err != nil {
		logger.Warn("alerts_restore_error", zap.Error(err))
	} else if len(open) > 0 {
		for _, a := range open {
			ledger.Append(a)
		}
		logger.Info("alerts_restored", zap.Int("open", len(open)))
	}
	evaluator := alert.NewEvaluator(logger, ledger, alert.DefaultRules(cfg.DomainThresholds(), policy))

	var notifier scheduler.Notifier
	if slack := notify.NewSlack(cfg.Notify.SlackWebhook, cfg.Notify.SlackUsername); slack != nil {
		minSev, _ := domain.ParseSeverity(cfg.Notify.MinSeverity)
		notifier = notify.NewAlerts(slack, minSev)
	}

	m := metrics.New()
	deps := scheduler.Deps{
		Logger:    logger,
		Collector: agg,
		Evaluator: evaluator,
		Sink:      sink,
		Alerts:    alerts,
		Notifier:  notifier,
		Metrics:   m,
	}
	if cfg.Monitor.Render {
		deps.Render = func(snap *domain.HealthSnapshot, st domain.EngineState, recent []domain.Alert) {
			if err := present.Render(os.Stdout, present.Build(snap, st, recent)); err != nil {
				logger.Warn("render_error", zap.Error(err))
			}
		}
	}
	sched := scheduler.New(scheduler.Config{
		Interval:  cfg.Monitor.Interval,
		QueueSize: cfg.Monitor.QueueSize,
	}, deps)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	logger.Info("monitor_started",
		zap.Strings("probes", registry.Names()),
		zap.Strings("sinks", cfg.Storage.Sinks),
		zap.Duration("interval", cfg.Monitor.Interval),
	)

	apiErr := make(chan error, 1)
	if cfg.API.Addr != "" {
		srv := httpapi.NewServer(logger, sched, m.Handler())
		h := srv.Router(httpapi.Options{
			Keys:           cfg.API.APIKeys,
			AllowedOrigins: cfg.API.AllowedOrigins,
			RateLimitRPM:   cfg.API.RateLimitRPM,
			RateLimitBurst: cfg.API.RateLimitBurst,
		})
		go func() { apiErr <- httpapi.Serve(ctx, logger, cfg.API.Addr, h, 5*time.Second) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-apiErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("status api: %w", err)
			logger.Error("status_api_error", zap.Error(err))
		}
	}
	stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("stop: %w", err))
	}
	st := sched.State()
	logger.Info("monitor_stopped",
		zap.Uint64("cycles", st.CycleCount),
		zap.Uint64("persisted", st.PersistedCount),
		zap.Uint64("persist_failures", st.PersistFailures),
	)
	return runErr
}

// buildProbes returns the enabled probes, each wrapped in a retry when more
// than one attempt is configured. The system probe is always on.
func buildProbes(cfg config.Config, db *postgres.Store) ([]probe.Probe, func()) {
	e := cfg.Endpoints
	probes := []probe.Probe{probe.NewSystemProbe(cfg.Thresholds.CPUUsageMaxPct, cfg.Thresholds.MemoryUsageMaxPct)}
	closers := []func() error{}

	if e.CoordinationURL != "" {
		probes = append(probes, probe.NewCoordinationProbe(e.CoordinationURL, cfg.Monitor.ProbeTimeout))
	}
	if len(e.KafkaBrokers) > 0 {
		probes = append(probes, probe.NewPubSubProbe(e.KafkaBrokers, e.KafkaTopics))
	}
	if e.RedisAddr != "" {
		rc := probe.NewRedisClient(e.RedisAddr, e.RedisPassword, e.RedisDB)
		closers = append(closers, rc.Close)
		probes = append(probes, probe.NewCacheProbe(rc, cfg.Thresholds.CacheHitRateMinPct))
	}
	if db != nil {
		probes = append(probes, probe.NewDatabaseProbe(db.Pool()))
	}

	if cfg.Monitor.RetryAttempts > 1 {
		for i, p := range probes {
			probes[i] = &probe.Retry{Inner: p, Attempts: cfg.Monitor.RetryAttempts, Backoff: cfg.Monitor.RetryBackoff}
		}
	}
	return probes, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

func buildSinks(ctx context.Context, cfg config.Config, db *postgres.Store) (repo.Sink, error) {
	var sinks repo.Multi
	for _, name := range cfg.Storage.Sinks {
		switch name {
		case config.SinkJSONL:
			w, err := jsonl.New(cfg.Storage.DataDir)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, w)
		case config.SinkMemory:
			sinks = append(sinks, memory.New(cfg.Monitor.LedgerCapacity))
		case config.SinkPostgres:
			sinks = append(sinks, db)
		case config.SinkElastic:
			es, err := elastic.NewClient(ctx, elastic.Config{
				Addresses: cfg.Endpoints.ElasticAddresses,
				Username:  cfg.Endpoints.ElasticUsername,
				Password:  cfg.Endpoints.ElasticPassword,
			})
			if err != nil {
				return nil, fmt.Errorf("elastic: %w", err)
			}
			sinks = append(sinks, elastic.NewSink(es, cfg.Storage.ElasticIndexPrefix))
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}
