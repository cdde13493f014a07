package service

import (
	"context"
	"sync"

	"github.com/gatewright/gatewright/internal/domain/event"
	"github.com/gatewright/gatewright/internal/port/broadcast"
)

// defaultEventCapacity bounds the in-memory event log.
const defaultEventCapacity = 4096

// EventLog is a bounded in-memory event recorder. It implements the
// broadcast port so it can sit next to the WebSocket hub in a fanout;
// the HTTP export endpoints read from it.
type EventLog struct {
	mu     sync.RWMutex
	events []event.Event
	cap    int
}

// NewEventLog creates an event log holding at most capacity events.
// Older events are dropped first.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventLog{cap: capacity}
}

// Emit records the event, evicting the oldest entry when full.
func (l *EventLog) Emit(_ context.Context, ev event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) >= l.cap {
		l.events = l.events[1:]
	}
	l.events = append(l.events, ev)
}

// Events returns a snapshot of all recorded events in arrival order.
func (l *EventLog) Events() []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]event.Event(nil), l.events...)
}

// EventsFor returns the events whose metadata carries the given run id,
// either as a validation run or an agent run.
func (l *EventLog) EventsFor(runID string) []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []event.Event
	for _, ev := range l.events {
		if ev.Metadata["run_id"] == runID || ev.Metadata["agent_run_id"] == runID {
			out = append(out, ev)
		}
	}
	return out
}

// Fanout broadcasts each event to every sink in order.
type Fanout []broadcast.Broadcaster

// Emit delivers the event to all sinks.
func (f Fanout) Emit(ctx context.Context, ev event.Event) {
	for _, b := range f {
		b.Emit(ctx, ev)
	}
}
