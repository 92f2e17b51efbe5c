package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/probe"
)

const DefaultTimeout = 10 * time.Second

// Aggregator runs every registered probe once per cycle and folds the
// results into a snapshot.
type Aggregator struct {
	logger   *zap.Logger
	registry *probe.Registry
	timeout  time.Duration
}

func New(logger *zap.Logger, registry *probe.Registry, timeout time.Duration) (*Aggregator, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, probe.ErrEmptyRegistry
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, registry: registry, timeout: timeout}, nil
}

func (a *Aggregator) Timeout() time.Duration { return a.timeout }

// Collect launches all probes concurrently and waits for each one to answer
// or hit its deadline. It always returns exactly one result per probe.
func (a *Aggregator) Collect(ctx context.Context, cycleID uint64) domain.HealthSnapshot {
	probes := a.registry.Probes()
	results := make([]domain.ProbeResult, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe.Probe) {
			defer wg.Done()
			results[i] = a.runOne(ctx, p)
		}(i, p)
	}
	wg.Wait()

	snap := domain.HealthSnapshot{
		CycleID: cycleID,
		TakenAt: time.Now().UTC(),
		Results: make(map[string]domain.ProbeResult, len(results)),
	}
	for _, r := range results {
		snap.Results[r.Name] = r
	}
	snap.Derived = Derive(results)
	return snap
}

func (a *Aggregator) runOne(ctx context.Context, p probe.Probe) domain.ProbeResult {
	name := p.Name()
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	// buffered so an abandoned probe can still deliver and exit
	ch := make(chan domain.ProbeResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("probe_panic", zap.String("probe", name), zap.Any("panic", rec))
				r := domain.Failed(name, start, fmt.Errorf("panic: %v", rec))
				ch <- r.WithDetail(domain.DetailPanic, true)
			}
		}()
		ch <- p.Run(cctx)
	}()

	select {
	case r := <-ch:
		r.Name = name
		r.Detail = copyDetail(r.Detail)
		if r.ObservedAt.IsZero() {
			r.ObservedAt = time.Now().UTC()
		}
		if r.Status == "" {
			r.Status = domain.StatusUnhealthy
		}
		return r
	case <-cctx.Done():
		a.logger.Warn("probe_timeout", zap.String("probe", name), zap.Duration("timeout", a.timeout))
		return domain.ProbeResult{
			Name:       name,
			Status:     domain.StatusUnhealthy,
			LatencyMS:  float64(a.timeout) / float64(time.Millisecond),
			ObservedAt: time.Now().UTC(),
			Detail: map[string]any{
				domain.DetailTimeout: true,
				domain.DetailError:   cctx.Err().Error(),
			},
		}
	}
}

// Derive computes the cycle-level figures. Timed-out probes count toward
// the average latency with the full timeout.
func Derive(results []domain.ProbeResult) domain.Derived {
	if len(results) == 0 {
		return domain.Derived{}
	}
	healthy := 0
	var total float64
	for _, r := range results {
		if r.Healthy() {
			healthy++
		}
		total += r.LatencyMS
	}
	n := float64(len(results))
	return domain.Derived{
		AverageLatencyMS: total / n,
		SuccessRate:      float64(healthy) / n,
	}
}

func copyDetail(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
