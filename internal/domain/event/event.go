// Package event defines pipeline events emitted to external observers and
// their export formats.
package event

import "time"

// Type identifies what happened.
type Type string

const (
	TypeRunSubmitted  Type = "run_submitted"
	TypeRunStarted    Type = "run_started"
	TypeRunCompleted  Type = "run_completed"
	TypeRunAborted    Type = "run_aborted"
	TypeGateStarted   Type = "gate_started"
	TypeGateCompleted Type = "gate_completed"
	TypeStepStarted   Type = "step_started"
	TypeStepCompleted Type = "step_completed"
	TypeStepFailed    Type = "step_failed"
	TypeToolCall      Type = "tool_call"
	TypeBudgetWarning Type = "budget_warning"
	TypeHeartbeat     Type = "heartbeat"
)

// Level is the event severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one observable occurrence in the pipeline. Emission is
// fire-and-forget; delivery failures never surface as pipeline errors.
type Event struct {
	Type      Type              `json:"type"`
	Level     Level             `json:"level"`
	Stage     string            `json:"stage,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// New creates an event stamped with the current time.
func New(t Type, level Level, stage, message string, metadata map[string]string) Event {
	return Event{
		Type:      t,
		Level:     level,
		Stage:     stage,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}
