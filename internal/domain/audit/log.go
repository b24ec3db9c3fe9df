package audit

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the number of entries BoundedLog keeps when none is configured.
const DefaultCapacity = 1000

// BoundedLog is an in-memory ring of the most recent entries.
// The oldest entry is evicted once the capacity is reached.
type BoundedLog struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewBoundedLog creates a log holding at most capacity entries.
func NewBoundedLog(capacity int) *BoundedLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BoundedLog{entries: make([]Entry, capacity)}
}

// Record implements Sink.
func (l *BoundedLog) Record(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Entries returns a copy of the retained entries, oldest first.
func (l *BoundedLog) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.full {
		out := make([]Entry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}

	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Len returns the number of retained entries.
func (l *BoundedLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Capacity returns the maximum number of retained entries.
func (l *BoundedLog) Capacity() int {
	return len(l.entries)
}

// MultiSink fans an entry out to every sink, collecting all failures.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
