package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

func (s *Store) Save(ctx context.Context, a domain.Alert) error {
	const q = `
		INSERT INTO alerts (id, category, condition, severity, message, raised_at, cleared_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id)
		DO UPDATE SET category=EXCLUDED.category, condition=EXCLUDED.condition,
		              severity=EXCLUDED.severity, message=EXCLUDED.message,
		              raised_at=EXCLUDED.raised_at, cleared_at=EXCLUDED.cleared_at
	`
	_, err := s.pool.Exec(ctx, q, a.ID, a.Category, a.Condition, string(a.Severity), a.Message, a.RaisedAt, a.ClearedAt)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, category, condition, severity, message, raised_at
		   FROM alerts
		  WHERE cleared_at IS NULL
		  ORDER BY raised_at, id`)
	if err != nil {
		return nil, fmt.Errorf("open alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			severity string
			raisedAt time.Time
		)
		if err := rows.Scan(&a.ID, &a.Category, &a.Condition, &severity, &a.Message, &raisedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = domain.Severity(severity)
		a.RaisedAt = raisedAt
		out = append(out, a)
	}
	return out, rows.Err()
}
