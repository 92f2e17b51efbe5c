package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hamed0406/healthmon/internal/repo"
)

// Writer appends records as JSON lines to one file per UTC day, named
// snapshots-YYYY-MM-DD.jsonl. Each line is written with a single append
// followed by fsync, so a crash can only lose the line being written.
type Writer struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	day    string
	f      *os.File
	closed bool
}

func New(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonl: create dir: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

func FileName(day time.Time) string {
	return "snapshots-" + day.UTC().Format("2006-01-02") + ".jsonl"
}

func (w *Writer) Write(ctx context.Context, r repo.Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("jsonl: marshal: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return repo.ErrClosed
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = w.now()
	}
	f, err := w.fileFor(ts)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("jsonl: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync: %w", err)
	}
	return nil
}

// fileFor returns the open file for ts's day, rotating if the day changed.
func (w *Writer) fileFor(ts time.Time) (*os.File, error) {
	day := ts.UTC().Format("2006-01-02")
	if w.f != nil && w.day == day {
		return w.f, nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	path := filepath.Join(w.dir, FileName(ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	w.f, w.day = f, day
	return f, nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
