// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error
}

// Subject constants for the run lifecycle protocol.
const (
	SubjectRunSubmitted = "runs.submitted" // lifecycle: run enqueued
	SubjectRunStarted   = "runs.started"   // lifecycle: run dequeued and running
	SubjectRunGate      = "runs.gate"      // lifecycle: one gate finished
	SubjectRunComplete  = "runs.complete"  // lifecycle: run reached a terminal state
	SubjectRunAbort     = "runs.abort"     // external abort request for a run
	SubjectStepComplete = "steps.complete" // pipeline: one phase step finished
)

// RunStatusPayload is published on the run lifecycle subjects.
type RunStatusPayload struct {
	RunID     string `json:"run_id"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Gate      int    `json:"gate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AbortPayload is consumed from SubjectRunAbort.
type AbortPayload struct {
	RunID string `json:"run_id"`
}

// StepPayload is published on SubjectStepComplete.
type StepPayload struct {
	AgentRunID  string  `json:"agent_run_id"`
	StepNumber  int     `json:"step_number"`
	Phase       string  `json:"phase"`
	Status      string  `json:"status"`
	InputTokens int64   `json:"input_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}
