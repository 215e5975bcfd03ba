// Package dashboard is the snapshot-buffer collaborator spec.md §1 keeps
// in scope (the UI layer that reads it is not): a bounded ring of the
// most recent messages, readable without blocking the producers,
// grounded on the teacher's noise_floor.go GetLatestMeasurements
// read-snapshot idiom.
package dashboard

import (
	"sync"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Buffer holds the most recent N messages of each kind.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	signals  []sig.Signal
	matched  []sig.MatchedSignal
	states   map[string]sig.StateMessage // most recent state per device
}

// New builds a Buffer retaining up to capacity signals and matched
// signals.
func New(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		states:   make(map[string]sig.StateMessage),
	}
}

// Consume implements fanout.Consumer.
func (b *Buffer) Consume(m sig.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch v := m.(type) {
	case sig.Signal:
		b.signals = appendBounded(b.signals, v, b.capacity)
	case sig.MatchedSignal:
		b.matched = appendBounded(b.matched, v, b.capacity)
	case sig.StateMessage:
		b.states[v.Device.String()] = v
	}
}

func appendBounded[T any](xs []T, v T, capacity int) []T {
	xs = append(xs, v)
	if len(xs) > capacity {
		xs = xs[len(xs)-capacity:]
	}
	return xs
}

// Snapshot is a point-in-time, caller-owned copy of the buffer's
// contents, safe to read without holding any lock.
type Snapshot struct {
	Signals []sig.Signal
	Matched []sig.MatchedSignal
	States  map[string]sig.StateMessage
}

// Snapshot returns a copy of the buffer's current contents.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]sig.StateMessage, len(b.states))
	for k, v := range b.states {
		states[k] = v
	}

	return Snapshot{
		Signals: append([]sig.Signal(nil), b.signals...),
		Matched: append([]sig.MatchedSignal(nil), b.matched...),
		States:  states,
	}
}
