package probe

import (
	"context"

	"github.com/hamed0406/healthmon/internal/domain"
)

// Probe checks one subsystem. Run must honor the deadline carried by ctx and
// must never panic or block past it: failures are reported as an unhealthy
// result with detail "error" set.
type Probe interface {
	Name() string
	Run(ctx context.Context) domain.ProbeResult
}

// Func adapts a plain function into a Probe.
type Func struct {
	ID string
	Fn func(ctx context.Context) domain.ProbeResult
}

func (f Func) Name() string { return f.ID }

func (f Func) Run(ctx context.Context) domain.ProbeResult {
	r := f.Fn(ctx)
	if r.Name == "" {
		r.Name = f.ID
	}
	return r
}
