package audit

import (
	"context"
	"errors"
	"sync"
)

const (
	// DefaultCapacity bounds the in-memory ledger; oldest entries are
	// evicted first once the ceiling is reached.
	DefaultCapacity = 1000

	// DefaultListLimit caps how many entries a single List call returns.
	DefaultListLimit = 100
)

// Ledger is a bounded, append-only in-memory audit log.
// Eviction is FIFO on capacity, not time based.
type Ledger struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewLedger constructs a ledger with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity}
}

// Log appends an entry, evicting the oldest once above capacity.
func (l *Ledger) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	if l == nil {
		return errors.New("audit ledger: nil ledger")
	}
	entry = Normalize(entry)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.capacity; overflow > 0 {
		l.entries = append(l.entries[:0:0], l.entries[overflow:]...)
	}
	return nil
}

// List returns entries most recent first, optionally filtered by action.
// The result is truncated to limit (DefaultListLimit when non-positive).
func (l *Ledger) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	_ = ctx
	if l == nil {
		return nil, errors.New("audit ledger: nil ledger")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if action != "" && l.entries[i].Action != action {
			continue
		}
		result = append(result, l.entries[i])
	}
	return result, nil
}

// Snapshot returns a copy of all retained entries, oldest first.
func (l *Ledger) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Restore replaces the ledger contents, trimming to capacity.
func (l *Ledger) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if overflow := len(entries) - l.capacity; overflow > 0 {
		entries = entries[overflow:]
	}
	l.entries = append([]Entry(nil), entries...)
}

// Len reports the current number of retained entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
