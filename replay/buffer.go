// Package replay provides the bounded per-session event log used to catch
// up reconnecting clients without losing ordering.
package replay

import (
	"sync"
	"time"

	"github.com/tailored-agentic-units/relay/event"
)

// DefaultCapacity bounds a session's buffered history when no explicit
// capacity is configured.
const DefaultCapacity = 1000

// Buffer is a bounded chronological log of event envelopes. When full, the
// oldest entry is evicted to admit the newest. All methods are safe for
// concurrent use; the multiplexer owns the buffer and is the only writer.
type Buffer struct {
	capacity int
	entries  []*event.Envelope
	appended uint64
	evicted  uint64
	mu       sync.RWMutex
}

// Stats reports buffer activity counters.
type Stats struct {
	Appended uint64 `json:"appended"`
	Evicted  uint64 `json:"evicted"`
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
}

// NewBuffer creates a Buffer holding at most capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
	}
}

// Append stores env at the end of the log, evicting the oldest entry when
// the buffer is full. It reports whether an eviction happened.
func (b *Buffer) Append(env *event.Envelope) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.appended++
	b.entries = append(b.entries, env)
	if len(b.entries) <= b.capacity {
		return false
	}
	b.entries = b.entries[1:]
	b.evicted++
	return true
}

// All returns a defensive copy of the buffered envelopes in append order.
func (b *Buffer) All() []*event.Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	copied := make([]*event.Envelope, len(b.entries))
	copy(copied, b.entries)
	return copied
}

// Since returns the buffered envelopes strictly newer than ts, in append
// order. A zero ts returns everything.
func (b *Buffer) Since(ts time.Time) []*event.Envelope {
	if ts.IsZero() {
		return b.All()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	start := len(b.entries)
	for i, env := range b.entries {
		if env.Timestamp.After(ts) {
			start = i
			break
		}
	}

	copied := make([]*event.Envelope, len(b.entries)-start)
	copy(copied, b.entries[start:])
	return copied
}

// Len returns the number of buffered envelopes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Stats returns a snapshot of the buffer's counters.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Appended: b.appended,
		Evicted:  b.evicted,
		Len:      len(b.entries),
		Capacity: b.capacity,
	}
}
