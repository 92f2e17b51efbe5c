package alert

import (
	"sort"
	"sync"

	"github.com/hamed0406/healthmon/internal/domain"
)

const DefaultCapacity = 100

// Ledger is a bounded, append-only history of alert raises and clears.
// When full, the oldest entry is evicted. The set of open alerts is kept
// separately so eviction of a raise never hides an alert that is still open.
type Ledger struct {
	mu      sync.RWMutex
	cap     int
	entries []domain.Alert
	open    map[string]domain.Alert
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		cap:     capacity,
		entries: make([]domain.Alert, 0, capacity),
		open:    make(map[string]domain.Alert),
	}
}

func (l *Ledger) Append(a domain.Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.cap {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, a)
	if a.Open() {
		l.open[a.ID] = a
	} else {
		delete(l.open, a.ID)
	}
}

// Recent returns up to n entries, oldest first. n <= 0 returns all.
func (l *Ledger) Recent(n int) []domain.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]domain.Alert, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// OpenAlerts returns the currently open alerts ordered by raise time.
func (l *Ledger) OpenAlerts() []domain.Alert {
	l.mu.RLock()
	out := make([]domain.Alert, 0, len(l.open))
	for _, a := range l.open {
		out = append(out, a)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	return out
}

func (l *Ledger) Open(id string) (domain.Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.open[id]
	return a, ok
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) Cap() int { return l.cap }
