// Package agentrun defines the domain model for multi-phase agent pipeline
// executions: the AgentRun aggregate, its append-only Steps, token usage,
// and per-model cost estimation.
package agentrun

import "time"

// Status represents the current state of an agent run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus represents the state of one phase execution.
// Once failed or completed, a step is immutable.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Phase names the standard TDD loop phases.
type Phase string

const (
	PhasePlan    Phase = "plan"
	PhaseSpec    Phase = "spec"
	PhaseFix     Phase = "fix"
	PhaseExecute Phase = "execute"
)

// Usage holds token counts reported by a provider call or accumulated
// over a step.
type Usage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		CacheReadTokens:     u.CacheReadTokens + other.CacheReadTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
	}
}

// AgentRun represents one multi-phase pipeline execution.
// Totals are always the sum of its steps' totals, recomputed on every
// step completion.
type AgentRun struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id,omitempty"` // owning validation run, if any
	Status      Status     `json:"status"`
	Totals      Usage      `json:"totals"`
	CostUSD     float64    `json:"cost_usd"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Step represents one phase execution within an agent run.
type Step struct {
	ID          string     `json:"id"`
	AgentRunID  string     `json:"agent_run_id"`
	StepNumber  int        `json:"step_number"`
	Phase       Phase      `json:"phase"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Status      StepStatus `json:"status"`
	Usage       Usage      `json:"usage"`
	CostUSD     float64    `json:"cost_usd"`
	Iterations  int        `json:"iterations"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Recompute sums step usage and cost into the run totals. It is safe to
// call repeatedly; re-aggregation never double-counts.
func (a *AgentRun) Recompute(steps []Step) {
	var totals Usage
	var cost float64
	for _, s := range steps {
		totals = totals.Add(s.Usage)
		cost += s.CostUSD
	}
	a.Totals = totals
	a.CostUSD = cost
}
