package probe

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

// fake probe you can control
type fakeProbe struct {
	results []domain.ProbeResult
	i       int
}

func (f *fakeProbe) Name() string { return "fake" }

func (f *fakeProbe) Run(ctx context.Context) domain.ProbeResult {
	if f.i >= len(f.results) {
		return domain.ProbeResult{Name: "fake", Status: domain.StatusUnhealthy}
	}
	r := f.results[f.i]
	f.i++
	return r
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	f := &fakeProbe{
		results: []domain.ProbeResult{
			{Status: domain.StatusUnhealthy},
			{Status: domain.StatusHealthy},
		},
	}
	rp := &Retry{Inner: f, Attempts: 3, Backoff: 10 * time.Millisecond}
	out := rp.Run(context.Background())
	if !out.Healthy() {
		t.Fatalf("expected success after retry, got %+v", out)
	}
	if out.Detail[domain.DetailAttempts] != 2 {
		t.Fatalf("expected attempts=2, got %v", out.Detail[domain.DetailAttempts])
	}
}

func TestRetry_AllFailAnnotates(t *testing.T) {
	f := &fakeProbe{
		results: []domain.ProbeResult{
			{Status: domain.StatusUnhealthy},
			{Status: domain.StatusDegraded},
		},
	}
	rp := &Retry{Inner: f, Attempts: 2}
	out := rp.Run(context.Background())
	if out.Healthy() {
		t.Fatalf("expected failure, got success")
	}
	if out.Status != domain.StatusDegraded {
		t.Fatalf("expected last result to be kept, got %s", out.Status)
	}
	if out.Detail[domain.DetailAttempts] != 2 {
		t.Fatalf("expected attempts annotation, got %+v", out.Detail)
	}
}

func TestRetry_StopsOnContextDone(t *testing.T) {
	f := &fakeProbe{}
	rp := &Retry{Inner: f, Attempts: 5, Backoff: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := rp.Run(ctx)
	if time.Since(start) > time.Second {
		t.Fatalf("retry ignored context deadline")
	}
	if out.Detail[domain.DetailAttempts] != 1 {
		t.Fatalf("expected a single attempt, got %v", out.Detail[domain.DetailAttempts])
	}
}
