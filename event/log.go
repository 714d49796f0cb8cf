package event

import "sync"

// Log is an in-memory, append-only journal safe for concurrent use.
// The engine appends after each successful transition; indexers read
// snapshots. It is bounded only by memory; production deployments drain
// it through hooks instead of letting it grow.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// NewLog returns an empty journal.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry to the journal.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Snapshot returns a copy of all entries in append order.
func (l *Log) Snapshot() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// OfKind returns all entries whose payload matches the given kind,
// in append order.
func (l *Log) OfKind(k Kind) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.events {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}
