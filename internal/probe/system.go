package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hamed0406/healthmon/internal/domain"
)

type HostSample struct {
	CPUPct    float64
	MemoryPct float64
	Load1     float64
	HasLoad   bool
}

// Sampler reads host resource usage.
type Sampler interface {
	Sample(ctx context.Context) (HostSample, error)
}

// HostSampler samples the local host with gopsutil. CPU usage is measured
// over Window.
type HostSampler struct {
	Window time.Duration
}

func (h HostSampler) Sample(ctx context.Context) (HostSample, error) {
	var s HostSample
	window := h.Window
	if window <= 0 {
		window = 200 * time.Millisecond
	}
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return s, fmt.Errorf("cpu: %w", err)
	}
	if len(pcts) > 0 {
		s.CPUPct = pcts[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("memory: %w", err)
	}
	s.MemoryPct = vm.UsedPercent
	// load average is not available everywhere
	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
		s.HasLoad = true
	}
	return s, nil
}

// SystemProbe reports host CPU and memory pressure.
type SystemProbe struct {
	Sampler      Sampler
	MaxCPUPct    float64
	MaxMemoryPct float64
}

func NewSystemProbe(maxCPUPct, maxMemoryPct float64) *SystemProbe {
	return &SystemProbe{Sampler: HostSampler{}, MaxCPUPct: maxCPUPct, MaxMemoryPct: maxMemoryPct}
}

func (s *SystemProbe) Name() string { return "system" }

func (s *SystemProbe) Run(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	sample, err := s.Sampler.Sample(ctx)
	if err != nil {
		return domain.Failed(s.Name(), start, err)
	}
	out := domain.ProbeResult{
		Name:       s.Name(),
		Status:     domain.StatusHealthy,
		LatencyMS:  domain.SinceMS(start),
		ObservedAt: time.Now().UTC(),
		Detail: map[string]any{
			domain.DetailCPUUsagePct:    sample.CPUPct,
			domain.DetailMemoryUsagePct: sample.MemoryPct,
		},
	}
	if sample.HasLoad {
		out.Detail["load1"] = sample.Load1
	}
	if (s.MaxCPUPct > 0 && sample.CPUPct > s.MaxCPUPct) ||
		(s.MaxMemoryPct > 0 && sample.MemoryPct > s.MaxMemoryPct) {
		out.Status = domain.StatusDegraded
	}
	return out
}
