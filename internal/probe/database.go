package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamed0406/healthmon/internal/domain"
)

// PoolStats is a point-in-time view of the connection pool.
type PoolStats struct {
	Acquired int32
	Max      int32
	Total    int32
	Idle     int32
}

type pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe pings the relational store and reports pool pressure.
type DatabaseProbe struct {
	db    pinger
	stats func() PoolStats
	// MaxUtilizationPct marks the store degraded when exceeded.
	MaxUtilizationPct float64
}

func NewDatabaseProbe(pool *pgxpool.Pool) *DatabaseProbe {
	return &DatabaseProbe{
		db: pool,
		stats: func() PoolStats {
			s := pool.Stat()
			return PoolStats{
				Acquired: s.AcquiredConns(),
				Max:      s.MaxConns(),
				Total:    s.TotalConns(),
				Idle:     s.IdleConns(),
			}
		},
		MaxUtilizationPct: 90,
	}
}

func (d *DatabaseProbe) Name() string { return "database" }

func (d *DatabaseProbe) Run(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	if err := d.db.Ping(ctx); err != nil {
		return domain.Failed(d.Name(), start, fmt.Errorf("ping: %w", err))
	}
	out := domain.ProbeResult{
		Name:       d.Name(),
		Status:     domain.StatusHealthy,
		LatencyMS:  domain.SinceMS(start),
		ObservedAt: time.Now().UTC(),
		Detail:     map[string]any{},
	}
	if d.stats == nil {
		return out
	}
	s := d.stats()
	out.Detail["totalConns"] = int(s.Total)
	out.Detail["idleConns"] = int(s.Idle)
	if s.Max > 0 {
		util := float64(s.Acquired) / float64(s.Max) * 100
		out.Detail[domain.DetailPoolUtilizationPct] = util
		if d.MaxUtilizationPct > 0 && util > d.MaxUtilizationPct {
			out.Status = domain.StatusDegraded
		}
	}
	return out
}
