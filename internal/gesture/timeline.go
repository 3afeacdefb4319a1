package gesture

import (
	"sync"
	"time"
)

// DefaultTimelineCapacity is the number of transitions kept for lookups.
const DefaultTimelineCapacity = 50

// Entry is one recorded transition.
type Entry struct {
	Timestamp time.Time
	Key       int
	Pressed   bool
}

// Timeline is a bounded history of transitions. When full, pushing evicts
// the oldest entry.
type Timeline struct {
	mu       sync.RWMutex
	capacity int
	// entries is ordered oldest first.
	entries []Entry
}

// NewTimeline creates a timeline holding at most capacity entries.
// A non-positive capacity selects DefaultTimelineCapacity.
func NewTimeline(capacity int) *Timeline {
	if capacity <= 0 {
		capacity = DefaultTimelineCapacity
	}
	return &Timeline{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Capacity returns the maximum number of entries.
func (t *Timeline) Capacity() int {
	return t.capacity
}

// Push records e as the most recent entry.
func (t *Timeline) Push(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == t.capacity {
		copy(t.entries, t.entries[1:])
		t.entries = t.entries[:len(t.entries)-1]
	}
	t.entries = append(t.entries, e)
}

// MostRecentMatching returns the newest entry for key accepted by match.
// A nil match accepts any entry.
func (t *Timeline) MostRecentMatching(key int, match func(Entry) bool) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.Key != key {
			continue
		}
		if match == nil || match(e) {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries held.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of the history, most recent first.
func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[len(t.entries)-1-i] = e
	}
	return out
}
