package repo

import (
	"context"

	"github.com/hamed0406/healthmon/internal/domain"
)

// AlertStore keeps the latest state of every alert ID outside the in-memory
// ledger. Save upserts by ID, so a clear overwrites its raise.
type AlertStore interface {
	Save(ctx context.Context, a domain.Alert) error
	// Open returns the alerts whose latest state is open.
	Open(ctx context.Context) ([]domain.Alert, error)
}
