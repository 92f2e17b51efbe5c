package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/metrics"
	"github.com/hamed0406/healthmon/internal/repo"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrStopped is returned by Start once the scheduler has been stopped;
	// its sink is closed and cannot be reused.
	ErrStopped = errors.New("scheduler stopped")
)

const (
	DefaultInterval = 30 * time.Second
	recentInRecord  = 10
	recentInView    = 5
)

// Collector produces one snapshot per call. health.Aggregator implements it.
type Collector interface {
	Collect(ctx context.Context, cycleID uint64) domain.HealthSnapshot
}

// Notifier receives the alert transitions of a cycle.
type Notifier interface {
	Notify(ctx context.Context, transitions []alert.Transition) error
}

// RenderFunc draws the operator view. snap is nil until the first cycle
// completes.
type RenderFunc func(snap *domain.HealthSnapshot, state domain.EngineState, recent []domain.Alert)

type Config struct {
	Interval      time.Duration
	QueueSize     int
	WriteTimeout  time.Duration
	NotifyTimeout time.Duration
}

type Deps struct {
	Logger    *zap.Logger
	Collector Collector
	Evaluator *alert.Evaluator
	Sink      repo.Sink
	Alerts    repo.AlertStore
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Render    RenderFunc
}

// Scheduler drives monitoring cycles at a fixed interval. Cycles run
// strictly one after another on a single goroutine; persistence, rendering
// and notification each run on their own goroutine fed by bounded queues so
// a slow consumer never delays the next cycle.
type Scheduler struct {
	cfg Config
	d   Deps
	log *zap.Logger

	mu        sync.Mutex
	phase     domain.Phase
	started   bool
	runID     string
	startedAt time.Time
	stopCh    chan struct{}
	stopped   chan struct{}
	stopErr   error

	loopDone   chan struct{}
	records    chan repo.Record
	writerDone chan struct{}
	renderSig  chan struct{}
	renderStop chan struct{}
	renderDone chan struct{}
	events     chan []alert.Transition
	eventsDone chan struct{}

	snapshot        atomic.Pointer[domain.HealthSnapshot]
	cycles          atomic.Uint64
	successful      atomic.Uint64
	persisted       atomic.Uint64
	persistFailures atomic.Uint64
}

func New(cfg Config, d Deps) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 16
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, d: d, log: d.Logger, phase: domain.PhaseStopped}
}

// Start runs one cycle immediately and then one per interval until Stop.
// Cycles run on a context detached from ctx's cancellation; use Stop to end
// them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseStopped {
		return ErrAlreadyRunning
	}
	if s.started {
		return ErrStopped
	}
	s.started = true
	s.phase = domain.PhaseRunning
	s.runID = uuid.NewString()
	s.startedAt = time.Now().UTC()
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.records = make(chan repo.Record, s.cfg.QueueSize)
	s.writerDone = make(chan struct{})
	s.renderSig = make(chan struct{}, 1)
	s.renderStop = make(chan struct{})
	s.renderDone = make(chan struct{})
	s.events = make(chan []alert.Transition, s.cfg.QueueSize)
	s.eventsDone = make(chan struct{})

	base := context.WithoutCancel(ctx)
	go s.writer(base)
	go s.renderer()
	go s.notifier(base)
	go s.loop(base)

	s.log.Info("scheduler_started",
		zap.String("run_id", s.runID),
		zap.Duration("interval", s.cfg.Interval),
	)
	return nil
}

// Stop lets the in-flight cycle finish, flushes queued records, closes the
// sink and returns once everything has shut down. It is safe to call more
// than once and from several goroutines.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case domain.PhaseStopped:
		s.mu.Unlock()
		return nil
	case domain.PhaseStopping:
		stopped := s.stopped
		s.mu.Unlock()
		select {
		case <-stopped:
			return s.stopResult()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.phase = domain.PhaseStopping
	close(s.stopCh)
	stopped := s.stopped
	s.mu.Unlock()

	s.log.Info("scheduler_stopping", zap.String("run_id", s.runID))
	go s.shutdown()

	select {
	case <-stopped:
		return s.stopResult()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) shutdown() {
	<-s.loopDone
	// the loop is the only producer, so the queues can be closed now
	close(s.records)
	close(s.events)
	close(s.renderStop)
	<-s.writerDone
	<-s.eventsDone
	<-s.renderDone

	var err error
	if s.d.Sink != nil {
		if cerr := s.d.Sink.Close(); cerr != nil {
			err = fmt.Errorf("close sink: %w", cerr)
			s.log.Warn("scheduler_sink_close_error", zap.Error(cerr))
		}
	}

	s.mu.Lock()
	s.stopErr = err
	s.phase = domain.PhaseStopped
	close(s.stopped)
	s.mu.Unlock()

	s.log.Info("scheduler_stopped",
		zap.String("run_id", s.runID),
		zap.Uint64("cycles", s.cycles.Load()),
		zap.Uint64("persisted", s.persisted.Load()),
	)
}

func (s *Scheduler) stopResult() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

// Run starts the scheduler, blocks until ctx is done and then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.Background())
}

// State returns a copy of the engine state.
func (s *Scheduler) State() domain.EngineState {
	s.mu.Lock()
	phase, runID, startedAt := s.phase, s.runID, s.startedAt
	s.mu.Unlock()
	return domain.EngineState{
		RunID:                runID,
		StartedAt:            startedAt,
		CycleCount:           s.cycles.Load(),
		SuccessfulCycleCount: s.successful.Load(),
		Phase:                phase,
		PersistedCount:       s.persisted.Load(),
		PersistFailures:      s.persistFailures.Load(),
	}
}

// Snapshot returns the latest snapshot, or nil before the first cycle.
func (s *Scheduler) Snapshot() *domain.HealthSnapshot { return s.snapshot.Load() }

func (s *Scheduler) Ledger() *alert.Ledger { return s.d.Evaluator.Ledger() }

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	s.cycle(ctx)

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			// a tick and a stop can be ready together
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	start := time.Now()
	id := s.cycles.Load()

	snap := s.d.Collector.Collect(ctx, id)
	snap.RunID = s.runID

	s.cycles.Add(1)
	if snap.Derived.SuccessRate == 1 {
		s.successful.Add(1)
	}

	transitions := s.evaluate(snap)
	s.snapshot.Store(&snap)

	ledger := s.d.Evaluator.Ledger()
	open := ledger.OpenAlerts()
	if s.d.Sink != nil {
		s.enqueue(repo.NewRecord(snap, open, ledger.Recent(recentInRecord)))
	}
	s.signalRender()

	if m := s.d.Metrics; m != nil {
		m.ObserveCycle(snap, time.Since(start))
		m.SetOpenAlerts(len(open))
		for _, tr := range transitions {
			if tr.Kind == alert.Raised {
				m.AlertRaised(tr.Alert.Severity)
			}
		}
	}
	if len(transitions) > 0 && (s.d.Notifier != nil || s.d.Alerts != nil) {
		select {
		case s.events <- transitions:
		default:
			s.log.Warn("scheduler_notify_queue_full", zap.Int("transitions", len(transitions)))
		}
	}

	s.log.Debug("scheduler_cycle",
		zap.Uint64("cycle_id", id),
		zap.Float64("success_rate", snap.Derived.SuccessRate),
		zap.Float64("avg_latency_ms", snap.Derived.AverageLatencyMS),
		zap.Int("open_alerts", len(open)),
		zap.Duration("took", time.Since(start)),
	)
}

// evaluate guards the cycle against a faulty evaluator; the snapshot is
// still published and persisted.
func (s *Scheduler) evaluate(snap domain.HealthSnapshot) (out []alert.Transition) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduler_evaluate_panic", zap.Uint64("cycle_id", snap.CycleID), zap.Any("panic", rec))
			out = nil
		}
	}()
	return s.d.Evaluator.Evaluate(snap)
}

func (s *Scheduler) enqueue(r repo.Record) {
	select {
	case s.records <- r:
	default:
		s.persistFailures.Add(1)
		if s.d.Metrics != nil {
			s.d.Metrics.PersistDropped()
		}
		s.log.Warn("scheduler_persist_queue_full", zap.Uint64("cycle_id", r.CycleID))
	}
}

func (s *Scheduler) writer(ctx context.Context) {
	defer close(s.writerDone)
	for r := range s.records {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		err := s.d.Sink.Write(wctx, r)
		cancel()
		if err != nil {
			s.persistFailures.Add(1)
			if s.d.Metrics != nil {
				s.d.Metrics.PersistFailed()
			}
			s.log.Warn("scheduler_persist_error", zap.Uint64("cycle_id", r.CycleID), zap.Error(err))
			continue
		}
		s.persisted.Add(1)
		if s.d.Metrics != nil {
			s.d.Metrics.Persisted()
		}
	}
}

func (s *Scheduler) signalRender() {
	select {
	case s.renderSig <- struct{}{}:
	default:
	}
}

func (s *Scheduler) renderer() {
	defer close(s.renderDone)
	for {
		select {
		case <-s.renderSig:
			s.render()
		case <-s.renderStop:
			select {
			case <-s.renderSig:
				s.render()
			default:
			}
			return
		}
	}
}

func (s *Scheduler) render() {
	if s.d.Render == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduler_render_panic", zap.Any("panic", rec))
		}
	}()
	s.d.Render(s.snapshot.Load(), s.State(), s.d.Evaluator.Ledger().Recent(recentInView))
}

func (s *Scheduler) notifier(ctx context.Context) {
	defer close(s.eventsDone)
	for batch := range s.events {
		nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		if s.d.Alerts != nil {
			for _, tr := range batch {
				if err := s.d.Alerts.Save(nctx, tr.Alert); err != nil {
					s.log.Warn("scheduler_alert_save_error", zap.String("alert_id", tr.Alert.ID), zap.Error(err))
				}
			}
		}
		if s.d.Notifier != nil {
			if err := s.d.Notifier.Notify(nctx, batch); err != nil {
				s.log.Warn("scheduler_notify_error", zap.Int("transitions", len(batch)), zap.Error(err))
			}
		}
		cancel()
	}
}
