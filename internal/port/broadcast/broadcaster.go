// Package broadcast defines the port for emitting pipeline events to
// connected observers.
package broadcast

import (
	"context"

	"github.com/gatewright/gatewright/internal/domain/event"
)

// Broadcaster fans events out to all connected observers. Emission is
// fire-and-forget: implementations swallow delivery failures and must
// never block the pipeline.
type Broadcaster interface {
	Emit(ctx context.Context, ev event.Event)
}

// Noop is a Broadcaster that discards all events. Useful in tests and for
// headless operation.
type Noop struct{}

// Emit discards the event.
func (Noop) Emit(context.Context, event.Event) {}
