package run

import (
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
)

// validStatuses enumerates all valid run statuses.
var validStatuses = map[Status]bool{
	StatusPending: true,
	StatusRunning: true,
	StatusPassed:  true,
	StatusFailed:  true,
	StatusAborted: true,
}

// Validate checks that a Run has all required fields and valid values.
func (r *Run) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if r.Status != "" && !validStatuses[r.Status] {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	if r.CurrentGate < 0 {
		return fmt.Errorf("current_gate must be non-negative")
	}
	return nil
}

// Validate checks that a SubmitRequest has all required fields.
// Path canonicalization is the lifecycle manager's job; this only checks
// presence.
func (r *SubmitRequest) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("project_id is required: %w", domain.ErrValidation)
	}
	if r.ProjectRoot == "" {
		return fmt.Errorf("project_root is required: %w", domain.ErrValidation)
	}
	if r.DeclaredTestPath == "" {
		return fmt.Errorf("declared_test_path is required: %w", domain.ErrValidation)
	}
	return nil
}
