package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Well-known ProbeResult.Detail keys.
const (
	DetailError              = "error"
	DetailTimeout            = "timeout"
	DetailPanic              = "panic"
	DetailAttempts           = "attempts"
	DetailMemoryUsagePct     = "memoryUsagePct"
	DetailCPUUsagePct        = "cpuUsagePct"
	DetailErrorRatePct       = "errorRatePct"
	DetailPoolUtilizationPct = "poolUtilizationPct"
	DetailHTTPStatus         = "httpStatus"
)

// ProbeResult is the outcome of one probe run. Treat it as immutable once
// returned; use WithDetail to derive a modified copy.
type ProbeResult struct {
	Name       string         `json:"name"`
	Status     Status         `json:"status"`
	LatencyMS  float64        `json:"latency_ms"`
	ObservedAt time.Time      `json:"observed_at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Healthy reports whether the probe counts toward the success rate.
func (r ProbeResult) Healthy() bool { return r.Status == StatusHealthy }

// Float returns a numeric detail value, accepting the integer and float
// kinds probes commonly report.
func (r ProbeResult) Float(key string) (float64, bool) {
	switch v := r.Detail[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// WithDetail returns a copy of r whose detail map has k set to v.
func (r ProbeResult) WithDetail(k string, v any) ProbeResult {
	d := make(map[string]any, len(r.Detail)+1)
	for key, val := range r.Detail {
		d[key] = val
	}
	d[k] = v
	r.Detail = d
	return r
}

// Failed builds an unhealthy result carrying a human-readable cause.
func Failed(name string, start time.Time, err error) ProbeResult {
	return ProbeResult{
		Name:       name,
		Status:     StatusUnhealthy,
		LatencyMS:  SinceMS(start),
		ObservedAt: time.Now().UTC(),
		Detail:     map[string]any{DetailError: err.Error()},
	}
}

// SinceMS is the elapsed wall time since start in milliseconds.
func SinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}

type Derived struct {
	AverageLatencyMS float64 `json:"average_latency_ms"`
	SuccessRate      float64 `json:"success_rate"`
}

// HealthSnapshot is the aggregated result of one cycle. A new snapshot is
// published every cycle; existing ones are never modified.
type HealthSnapshot struct {
	CycleID uint64                 `json:"cycle_id"`
	RunID   string                 `json:"run_id"`
	TakenAt time.Time              `json:"taken_at"`
	Results map[string]ProbeResult `json:"results"`
	Derived Derived                `json:"derived"`
}

type ThresholdConfig struct {
	SuccessRateMin    float64 `json:"success_rate_min"`
	LatencyMaxMS      float64 `json:"latency_max_ms"`
	MemoryUsageMaxPct float64 `json:"memory_usage_max_pct"`
	CPUUsageMaxPct    float64 `json:"cpu_usage_max_pct"`
	ErrorRateMaxPct   float64 `json:"error_rate_max_pct"`
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		SuccessRateMin:    0.95,
		LatencyMaxMS:      1000,
		MemoryUsageMaxPct: 80,
		CPUUsageMaxPct:    80,
		ErrorRateMaxPct:   5,
	}
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Alert is one ledger entry. A raise has ClearedAt == nil; clearing appends
// a copy of the raise with ClearedAt set.
type Alert struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Condition string     `json:"condition"`
	Severity  Severity   `json:"severity"`
	Message   string     `json:"message"`
	RaisedAt  time.Time  `json:"raised_at"`
	ClearedAt *time.Time `json:"cleared_at,omitempty"`
}

func AlertID(category, condition string) string { return category + "/" + condition }

func (a Alert) Open() bool { return a.ClearedAt == nil }

// Cleared returns the terminal entry for a.
func (a Alert) Cleared(at time.Time) Alert {
	t := at
	a.ClearedAt = &t
	return a
}

type Phase string

const (
	PhaseStopped  Phase = "stopped"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
)

type EngineState struct {
	RunID                string    `json:"run_id"`
	StartedAt            time.Time `json:"started_at"`
	CycleCount           uint64    `json:"cycle_count"`
	SuccessfulCycleCount uint64    `json:"successful_cycle_count"`
	Phase                Phase     `json:"phase"`
	PersistedCount       uint64    `json:"persisted_count"`
	PersistFailures      uint64    `json:"persist_failures"`
}

func (s EngineState) IsRunning() bool { return s.Phase == PhaseRunning }
