// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/gatewright/gatewright/internal/domain/agentrun"
	"github.com/gatewright/gatewright/internal/domain/gate"
	"github.com/gatewright/gatewright/internal/domain/run"
)

// Store is the port interface for database operations. The core never
// embeds storage logic; all persistence goes through this interface.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, id string) (*run.Run, error)
	ListRunsByProject(ctx context.Context, projectID string) ([]run.Run, error)
	// UpdateRunStatus advances the lifecycle; implementations must use
	// optimistic locking and return domain.ErrConflict on a stale version.
	UpdateRunStatus(ctx context.Context, id string, status run.Status, currentGate int, version int) error
	UpdateRunPath(ctx context.Context, id string, canonicalPath string) error
	CompleteRun(ctx context.Context, id string, status run.Status, report, errMsg string) error

	// Gate results (append-only children of a run)
	SaveGateResult(ctx context.Context, runID string, gr *gate.GateResult) error
	ListGateResults(ctx context.Context, runID string) ([]gate.GateResult, error)

	// Agent runs
	CreateAgentRun(ctx context.Context, ar *agentrun.AgentRun) error
	GetAgentRun(ctx context.Context, id string) (*agentrun.AgentRun, error)
	CompleteAgentRun(ctx context.Context, id string, status agentrun.Status, errMsg string) error

	// Agent run steps (append-only; immutable once completed or failed)
	CreateStep(ctx context.Context, st *agentrun.Step) error
	CompleteStep(ctx context.Context, st *agentrun.Step) error
	ListSteps(ctx context.Context, agentRunID string) ([]agentrun.Step, error)
	// AggregateSteps recomputes run totals from its steps and persists them.
	AggregateSteps(ctx context.Context, agentRunID string) (*agentrun.AgentRun, error)
}
