package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

// ErrClosed is returned by sinks written to after Close.
var ErrClosed = errors.New("sink closed")

// Sink receives one record per cycle. Implementations must be safe to call
// from a single writer goroutine; Close flushes and releases resources.
type Sink interface {
	Write(ctx context.Context, r Record) error
	Close() error
}

type ProbeRecord struct {
	Status    domain.Status  `json:"status"`
	LatencyMS float64        `json:"latencyMs"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Record is the persisted form of one cycle.
type Record struct {
	Timestamp        time.Time              `json:"timestamp"`
	RunID            string                 `json:"runId"`
	CycleID          uint64                 `json:"cycleId"`
	SuccessRate      float64                `json:"successRate"`
	AverageLatencyMS float64                `json:"averageLatencyMs"`
	Probes           map[string]ProbeRecord `json:"probes"`
	ActiveAlerts     []domain.Alert         `json:"activeAlerts"`
	RecentAlerts     []domain.Alert         `json:"recentAlerts"`
}

func NewRecord(snap domain.HealthSnapshot, active, recent []domain.Alert) Record {
	r := Record{
		Timestamp:        snap.TakenAt,
		RunID:            snap.RunID,
		CycleID:          snap.CycleID,
		SuccessRate:      snap.Derived.SuccessRate,
		AverageLatencyMS: snap.Derived.AverageLatencyMS,
		Probes:           make(map[string]ProbeRecord, len(snap.Results)),
		ActiveAlerts:     nonNil(active),
		RecentAlerts:     nonNil(recent),
	}
	for name, pr := range snap.Results {
		var d map[string]any
		if len(pr.Detail) > 0 {
			d = make(map[string]any, len(pr.Detail))
			for k, v := range pr.Detail {
				d[k] = v
			}
		}
		r.Probes[name] = ProbeRecord{Status: pr.Status, LatencyMS: pr.LatencyMS, Detail: d}
	}
	return r
}

func nonNil(a []domain.Alert) []domain.Alert {
	if a == nil {
		return []domain.Alert{}
	}
	return a
}
