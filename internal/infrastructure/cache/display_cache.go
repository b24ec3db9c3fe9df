// Package cache provides the display-only document cache.
//
// Entries shown to users are either Pending (an optimistic value written
// before a commit) or Confirmed (read back from the authoritative store).
// Nothing in the domain reads from this cache to make a decision.
package cache

import (
	"sync"
	"time"
)

// Status tells whether an entry has been read back from storage.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

// Entry is a cached value with its display status.
type Entry[V any] struct {
	Value     V         `json:"value"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type slot[V any] struct {
	current Entry[V]
	// previous confirmed entry, restored on rollback
	previous *Entry[V]
}

// DisplayCache is a thread-safe two-phase cache.
type DisplayCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*slot[V]
	now     func() time.Time
}

// NewDisplayCache creates an empty cache.
func NewDisplayCache[K comparable, V any]() *DisplayCache[K, V] {
	return &DisplayCache[K, V]{
		entries: make(map[K]*slot[V]),
		now:     time.Now,
	}
}

// Get returns the entry for key.
func (c *DisplayCache[K, V]) Get(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return s.current, true
}

// SetPending shows value before the write that produces it is committed.
// The last confirmed entry is kept for Rollback.
func (c *DisplayCache[K, V]) SetPending(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[V]{Value: value, Status: StatusPending, UpdatedAt: c.now()}
	s, ok := c.entries[key]
	if !ok {
		c.entries[key] = &slot[V]{current: entry}
		return
	}
	if s.current.Status == StatusConfirmed {
		prev := s.current
		s.previous = &prev
	}
	s.current = entry
}

// Confirm replaces whatever is shown with a value read from storage.
func (c *DisplayCache[K, V]) Confirm(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &slot[V]{current: Entry[V]{Value: value, Status: StatusConfirmed, UpdatedAt: c.now()}}
}

// Rollback drops a pending entry and restores the last confirmed one, if any.
// Confirmed entries are left alone.
func (c *DisplayCache[K, V]) Rollback(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[key]
	if !ok || s.current.Status != StatusPending {
		return
	}
	if s.previous == nil {
		delete(c.entries, key)
		return
	}
	s.current = *s.previous
	s.previous = nil
}

// Invalidate forgets key.
func (c *DisplayCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached keys.
func (c *DisplayCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
