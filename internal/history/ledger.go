// internal/history/ledger.go
package history

import (
	"sync"

	"github.com/aegislab/aegishive/internal/metrics"
	"github.com/aegislab/aegishive/internal/telemetry"
)

// DefaultCapacity bounds the dashboard's recent-detections feed.
const DefaultCapacity = 20

// Ledger is the bounded, newest-first log of detection events. It is the
// single source of truth for the dashboard. Record and Snapshot share
// one lock; the event rate is low (malicious-only), so contention is
// not a concern.
type Ledger struct {
	mu     sync.Mutex
	events []telemetry.DetectionEvent
	cap    int
}

// New creates a ledger. A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		events: make([]telemetry.DetectionEvent, 0, capacity),
		cap:    capacity,
	}
}

// Record inserts an event at the head, evicting the oldest entry when at
// capacity. Eviction is policy, not an error.
func (l *Ledger) Record(ev telemetry.DetectionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == l.cap {
		l.events = l.events[:l.cap-1]
		metrics.LedgerEvictions.Inc()
	}
	l.events = append([]telemetry.DetectionEvent{ev}, l.events...)
}

// Snapshot returns a copy of the current events, newest first. Callers
// can never mutate internal storage through it.
func (l *Ledger) Snapshot() []telemetry.DetectionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]telemetry.DetectionEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the current number of retained events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
