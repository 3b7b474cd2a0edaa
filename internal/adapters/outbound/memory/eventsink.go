package memory

import (
	"context"
	"sync"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink.
var _ outbound.EventSink = (*EventSink)(nil)

// EventSink is an in-memory implementation of the outbound.EventSink port.
// It records published events for inspection in tests.
type EventSink struct {
	mu     sync.Mutex
	events []entity.EngineEvent
}

// NewEventSink creates a new in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{}
}

// Publish records one event.
func (s *EventSink) Publish(ctx context.Context, event entity.EngineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Close is a no-op for the in-memory sink.
func (s *EventSink) Close() error { return nil }

// Events returns a copy of everything published so far.
func (s *EventSink) Events() []entity.EngineEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.EngineEvent(nil), s.events...)
}

// OfType returns the recorded events of one type, in publication order.
func (s *EventSink) OfType(t entity.EventType) []entity.EngineEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.EngineEvent
	for _, ev := range s.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}
