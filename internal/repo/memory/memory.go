package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/healthmon/internal/domain"
	"github.com/hamed0406/healthmon/internal/repo"
)

// Sink keeps the most recent records in memory. Used in development and
// tests when no durable sink is configured.
type Sink struct {
	mu      sync.RWMutex
	max     int
	records []repo.Record
	closed  bool
}

func New(max int) *Sink {
	if max <= 0 {
		max = 1024
	}
	return &Sink{max: max, records: make([]repo.Record, 0, 16)}
}

func (m *Sink) Write(ctx context.Context, r repo.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return repo.ErrClosed
	}
	if len(m.records) == m.max {
		m.records = append(m.records[:0], m.records[1:]...)
	}
	m.records = append(m.records, r)
	return nil
}

func (m *Sink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Records returns a copy of the stored records, oldest first.
func (m *Sink) Records() []repo.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repo.Record, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Sink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// AlertStore is the in-memory repo.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]domain.Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]domain.Alert)}
}

func (s *AlertStore) Save(ctx context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

func (s *AlertStore) Open(ctx context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Open() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
