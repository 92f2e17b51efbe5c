package repo

import (
	"context"

	"go.uber.org/multierr"
)

// Multi writes every record to all sinks. A failing sink does not stop the
// others; their errors are combined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r Record) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Write(ctx, r))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
