package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/repo"
)

var _ repo.Sink = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS health_snapshots (
  id             BIGSERIAL PRIMARY KEY,
  run_id         TEXT NOT NULL,
  cycle_id       BIGINT NOT NULL,
  taken_at       TIMESTAMPTZ NOT NULL,
  success_rate   DOUBLE PRECISION NOT NULL,
  avg_latency_ms DOUBLE PRECISION NOT NULL,
  payload        JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_snapshots_taken_at ON health_snapshots (taken_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  id         TEXT PRIMARY KEY,
  category   TEXT NOT NULL,
  condition  TEXT NOT NULL,
  severity   TEXT NOT NULL,
  message    TEXT NOT NULL,
  raised_at  TIMESTAMPTZ NOT NULL,
  cleared_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Pool exposes the pool so the database probe can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Write(ctx context.Context, r repo.Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO health_snapshots
		   (run_id, cycle_id, taken_at, success_rate, avg_latency_ms, payload)
		 VALUES
		   ($1, $2, $3, $4, $5, $6)`,
		r.RunID, int64(r.CycleID), r.Timestamp, r.SuccessRate, r.AverageLatencyMS, payload,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the newest n persisted records.
func (s *Store) Latest(ctx context.Context, n int) ([]repo.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload
		   FROM health_snapshots
		  ORDER BY taken_at DESC, id DESC
		  LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	defer rows.Close()

	var out []repo.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var r repo.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
