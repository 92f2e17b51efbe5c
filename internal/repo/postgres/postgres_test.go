package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/repo"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStore_WriteAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Unique run id per test run so earlier rows don't interfere.
	runID := fmt.Sprintf("test-%d", time.Now().UTC().UnixNano())
	rec := repo.Record{
		Timestamp:   time.Now().UTC().Add(time.Hour),
		RunID:       runID,
		CycleID:     7,
		SuccessRate: 0.8,
		Probes:      map[string]repo.ProbeRecord{"cache": {Status: domain.StatusUnhealthy, LatencyMS: 4}},
	}
	if err := store.Write(ctx, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	latest, err := store.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 1 || latest[0].RunID != runID {
		t.Fatalf("expected our record first, got %+v", latest)
	}
	if latest[0].Probes["cache"].Status != domain.StatusUnhealthy {
		t.Fatalf("payload not round-tripped: %+v", latest[0].Probes)
	}
}

func TestPostgresStore_AlertUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("test/cond-%d", time.Now().UTC().UnixNano())
	a := domain.Alert{ID: id, Category: "test", Condition: "cond", Severity: domain.SeverityLow, RaisedAt: time.Now().UTC()}
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("Save raise: %v", err)
	}
	if !containsID(t, store, id) {
		t.Fatalf("raised alert not reported open")
	}
	if err := store.Save(ctx, a.Cleared(time.Now().UTC())); err != nil {
		t.Fatalf("Save clear: %v", err)
	}
	if containsID(t, store, id) {
		t.Fatalf("cleared alert still reported open")
	}
}

func containsID(t *testing.T, s *Store, id string) bool {
	t.Helper()
	open, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, a := range open {
		if a.ID == id {
			return true
		}
	}
	return false
}
