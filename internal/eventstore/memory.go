package eventstore

import (
	"context"
	"sync"
)

// MemorySink keeps events in process memory. It is the default sink when no
// event store database is configured, and the test double elsewhere.
type MemorySink struct {
	mu     sync.RWMutex
	events []StoredEvent
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink
func (s *MemorySink) Append(_ context.Context, event StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything appended so far
func (s *MemorySink) Events() []StoredEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Close implements Sink
func (s *MemorySink) Close() error {
	return nil
}
