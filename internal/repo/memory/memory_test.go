package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/repo"
)

func TestMemorySink_BoundedWrite(t *testing.T) {
	ctx := context.Background()
	s := New(2)

	for i := uint64(0); i < 3; i++ {
		if err := s.Write(ctx, repo.Record{CycleID: i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	got := s.Records()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].CycleID != 1 || got[1].CycleID != 2 {
		t.Fatalf("expected oldest record evicted, got %d,%d", got[0].CycleID, got[1].CycleID)
	}
}

func TestMemorySink_WriteAfterClose(t *testing.T) {
	s := New(1)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Write(context.Background(), repo.Record{}); !errors.Is(err, repo.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAlertStore_ClearOverwritesRaise(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStore()
	a := domain.Alert{ID: "system/memory", RaisedAt: time.Now()}
	b := domain.Alert{ID: "performance/latency", RaisedAt: time.Now()}

	_ = s.Save(ctx, a)
	_ = s.Save(ctx, b)
	_ = s.Save(ctx, a.Cleared(time.Now()))

	open, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(open) != 1 || open[0].ID != "performance/latency" {
		t.Fatalf("unexpected open alerts: %+v", open)
	}
}
