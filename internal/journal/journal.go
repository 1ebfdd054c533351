// Package journal keeps the rolling log of operator commands shown on the dashboard.
package journal

import "sync"

// DefaultCapacity is the number of entries kept by New
const DefaultCapacity = 10

// Journal is a bounded FIFO of command descriptions. The oldest entry is
// evicted when a new one would exceed the capacity.
type Journal struct {
	mu       sync.RWMutex
	capacity int
	entries  []string
}

// New creates a journal holding DefaultCapacity entries
func New() *Journal {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a journal holding at most capacity entries
func NewWithCapacity(capacity int) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	return &Journal{
		capacity: capacity,
		entries:  make([]string, 0, capacity),
	}
}

// Add appends an entry, evicting the oldest one when full
func (j *Journal) Add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) == j.capacity {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:len(j.entries)-1]
	}
	j.entries = append(j.entries, entry)
}

// Snapshot returns the entries from oldest to newest
func (j *Journal) Snapshot() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

// Last returns the newest entry
func (j *Journal) Last() (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.entries) == 0 {
		return "", false
	}
	return j.entries[len(j.entries)-1], true
}
