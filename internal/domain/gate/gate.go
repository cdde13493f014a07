// Package gate defines the domain model for the validation gate pipeline:
// ordered gates of validators, per-validator results, and the rejection
// report fed back to the LLM fix loop.
package gate

import "context"

// ValidatorStatus is the outcome of a single validator execution.
type ValidatorStatus string

const (
	StatusPassed  ValidatorStatus = "PASSED"
	StatusFailed  ValidatorStatus = "FAILED"
	StatusWarning ValidatorStatus = "WARNING"
	StatusSkipped ValidatorStatus = "SKIPPED"
)

// Context carries everything a validator may inspect. Validators are
// read-only with respect to the project under test.
type Context struct {
	RunID         string
	ProjectRoot   string
	TestPath      string // canonical, inside ProjectRoot
	ManifestPath  string
	DangerMode    bool
	ChangedFiles  []string
	ProposedFiles map[string]string // path -> content of the proposed change
}

// Validator is one opaque validation unit. Implementations are registered
// statically at startup; Gate, Order and HardBlock are data, not behavior.
type Validator interface {
	// Code returns the stable machine identifier, e.g. "forbidden-patterns".
	Code() string
	// Name returns the human-readable display name.
	Name() string
	// Gate returns the gate number this validator belongs to.
	Gate() int
	// Order returns the position within the gate used for deterministic reporting.
	Order() int
	// HardBlock reports whether a failure blocks the gate and the run.
	HardBlock() bool
	// Execute runs the validation. Implementations return a deliberate
	// FAILED result for findings; internal errors may be returned or
	// panicked and are converted to FAILED by the engine.
	Execute(ctx context.Context, gc *Context) (ValidatorResult, error)
}

// ValidatorResult is the outcome of one validator within a gate.
type ValidatorResult struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Gate      int             `json:"gate"`
	Order     int             `json:"order"`
	HardBlock bool            `json:"hard_block"`
	Status    ValidatorStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	Details   *Details        `json:"details,omitempty"`
}

// Passed reports whether the validator did not fail.
func (r ValidatorResult) Passed() bool {
	return r.Status == StatusPassed || r.Status == StatusSkipped
}

// GateResult aggregates a gate's validator results.
type GateResult struct {
	Gate         int               `json:"gate"`
	Name         string            `json:"name,omitempty"`
	Passed       bool              `json:"passed"`
	PassedCount  int               `json:"passed_count"`
	FailedCount  int               `json:"failed_count"`
	WarningCount int               `json:"warning_count"`
	Validators   []ValidatorResult `json:"validators"`
}

// DetailsKind tags the Details union.
type DetailsKind string

const (
	DetailsViolations  DetailsKind = "violations"
	DetailsFailedTests DetailsKind = "failed_tests"
	DetailsText        DetailsKind = "text"
)

// Details is the structured payload attached to a validator result. The
// kind is decided at validator-authoring time so the report builder never
// has to sniff JSON from free-form strings.
type Details struct {
	Kind            DetailsKind  `json:"kind"`
	Violations      []string     `json:"violations,omitempty"`
	IncompleteFiles []string     `json:"incomplete_files,omitempty"`
	Errors          []string     `json:"errors,omitempty"`
	FailedTests     []FailedTest `json:"failed_tests,omitempty"`
	Text            string       `json:"text,omitempty"`
}

// FailedTest describes one failing test case.
type FailedTest struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// TextDetails builds a plain-text details payload.
func TextDetails(text string) *Details {
	return &Details{Kind: DetailsText, Text: text}
}

// Aggregate computes a GateResult from validator results belonging to one
// gate. Results are assumed to be sorted by declared order already.
//
// A gate passes iff no hard-block validator failed. When promoteWarnings is
// set, a WARNING from a hard-block validator counts as a failure.
func Aggregate(gateNumber int, name string, results []ValidatorResult, promoteWarnings bool) GateResult {
	gr := GateResult{Gate: gateNumber, Name: name, Passed: true, Validators: results}
	for _, r := range results {
		switch r.Status {
		case StatusPassed, StatusSkipped:
			gr.PassedCount++
		case StatusWarning:
			gr.WarningCount++
			if promoteWarnings && r.HardBlock {
				gr.Passed = false
			}
		case StatusFailed:
			gr.FailedCount++
			if r.HardBlock {
				gr.Passed = false
			}
		}
	}
	return gr
}
