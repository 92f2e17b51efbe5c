package probe

import (
	"context"
	"time"

	"github.com/hamed0406/healthmon/internal/domain"
)

// Retry reruns Inner while it reports anything but healthy, sleeping Backoff
// between attempts. It stops early when ctx is done.
type Retry struct {
	Inner    Probe
	Attempts int
	Backoff  time.Duration
}

func (r *Retry) Name() string { return r.Inner.Name() }

func (r *Retry) Run(ctx context.Context) domain.ProbeResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last domain.ProbeResult
	n := 0
	for n < attempts {
		last = r.Inner.Run(ctx)
		n++
		if last.Healthy() || n == attempts {
			break
		}
		t := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return last.WithDetail(domain.DetailAttempts, n)
		case <-t.C:
		}
	}
	if n > 1 {
		last = last.WithDetail(domain.DetailAttempts, n)
	}
	return last
}
