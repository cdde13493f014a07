// Package run defines the Run domain entity: one validation attempt of a
// proposed code change against the gate pipeline.
package run

import "time"

// Status represents the current state of a run. Transitions are monotonic:
// PENDING → RUNNING → {PASSED, FAILED, ABORTED}. Terminal runs are immutable.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusAborted Status = "ABORTED"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusAborted
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Terminal states accept no further transitions.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusAborted
	case StatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Run represents one validation attempt against a code change.
type Run struct {
	ID                string     `json:"id"`
	ProjectID         string     `json:"project_id"`
	Status            Status     `json:"status"`
	CurrentGate       int        `json:"current_gate"`
	DeclaredTestPath  string     `json:"declared_test_path"`
	CanonicalTestPath string     `json:"canonical_test_path"`
	DangerMode        bool       `json:"danger_mode"`
	Report            string     `json:"report,omitempty"`
	Error             string     `json:"error,omitempty"`
	Version           int        `json:"version"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SubmitRequest holds the fields needed to submit a new run.
type SubmitRequest struct {
	ProjectID        string `json:"project_id"`
	ProjectRoot      string `json:"project_root"`
	DeclaredTestPath string `json:"declared_test_path"`
	ManifestPath     string `json:"manifest_path,omitempty"`
	DangerMode       bool   `json:"danger_mode,omitempty"`
}
