package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/gatewright/gatewright/internal/domain/event"
)

func TestEventLogEviction(t *testing.T) {
	l := NewEventLog(3)
	for i := 0; i < 5; i++ {
		l.Emit(context.Background(), event.New(event.TypeHeartbeat, event.LevelInfo, "test",
			fmt.Sprintf("ev%d", i), nil))
	}

	events := l.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events after eviction, got %d", len(events))
	}
	if events[0].Message != "ev2" {
		t.Fatalf("expected oldest surviving event ev2, got %s", events[0].Message)
	}
}

func TestEventLogEventsFor(t *testing.T) {
	l := NewEventLog(16)
	l.Emit(context.Background(), event.New(event.TypeRunStarted, event.LevelInfo, "lifecycle",
		"started", map[string]string{"run_id": "r1"}))
	l.Emit(context.Background(), event.New(event.TypeRunStarted, event.LevelInfo, "lifecycle",
		"started", map[string]string{"run_id": "r2"}))
	l.Emit(context.Background(), event.New(event.TypeStepStarted, event.LevelInfo, "pipeline",
		"step", map[string]string{"agent_run_id": "r1"}))

	got := l.EventsFor("r1")
	if len(got) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(got))
	}
	if len(l.EventsFor("r3")) != 0 {
		t.Fatal("expected no events for unknown run")
	}
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a := NewEventLog(4)
	b := NewEventLog(4)
	f := Fanout{a, b}

	f.Emit(context.Background(), event.New(event.TypeHeartbeat, event.LevelInfo, "test", "hi", nil))

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d",
			len(a.Events()), len(b.Events()))
	}
}
