package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gatewright/gatewright/internal/domain/event"
)

// EventEnvelope is the wire form of a pipeline event.
const EventEnvelope = "pipeline.event"

// Emit implements the broadcast port: it wraps a pipeline event in the
// message envelope and fans it out. Delivery failures are swallowed.
func (h *Hub) Emit(ctx context.Context, ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal ws event payload", "type", ev.Type, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    EventEnvelope,
		Payload: json.RawMessage(data),
	})
}

// Heartbeat emits a heartbeat event at the given interval until ctx is
// canceled. Clients use it to detect a stalled backend.
func (h *Hub) Heartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Emit(ctx, event.New(event.TypeHeartbeat, event.LevelInfo, "ws", "heartbeat", nil))
		}
	}
}
