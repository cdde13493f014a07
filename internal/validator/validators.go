package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gatewright/gatewright/internal/domain/gate"
)

// --- Gate 0: structure ---

// ManifestPresent verifies the run declares a manifest and that it exists.
type ManifestPresent struct{}

func (*ManifestPresent) Code() string    { return "manifest-present" }
func (*ManifestPresent) Name() string    { return "Manifest Present" }
func (*ManifestPresent) Gate() int       { return 0 }
func (*ManifestPresent) Order() int      { return 0 }
func (*ManifestPresent) HardBlock() bool { return true }

func (v *ManifestPresent) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	res := result(v, gate.StatusPassed, "")
	if gc.ManifestPath == "" {
		res.Status = gate.StatusFailed
		res.Message = "run declares no manifest"
		return res, nil
	}
	if _, err := os.Stat(filepath.FromSlash(gc.ManifestPath)); err != nil {
		res.Status = gate.StatusFailed
		res.Message = fmt.Sprintf("manifest not found at %s", gc.ManifestPath)
		return res, nil
	}
	return res, nil
}

// SpecFileLocated verifies the canonical test file exists on disk.
type SpecFileLocated struct{}

func (*SpecFileLocated) Code() string    { return "spec-file-located" }
func (*SpecFileLocated) Name() string    { return "Spec File Located" }
func (*SpecFileLocated) Gate() int       { return 0 }
func (*SpecFileLocated) Order() int      { return 1 }
func (*SpecFileLocated) HardBlock() bool { return true }

func (v *SpecFileLocated) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	res := result(v, gate.StatusPassed, "")
	if gc.TestPath == "" {
		res.Status = gate.StatusFailed
		res.Message = "run has no canonical test path"
		return res, nil
	}
	if _, err := os.Stat(filepath.FromSlash(gc.TestPath)); err != nil {
		res.Status = gate.StatusFailed
		res.Message = fmt.Sprintf("spec file not found at %s", gc.TestPath)
		return res, nil
	}
	return res, nil
}

// --- Gate 1: content ---

// forbiddenPatterns are disallowed in proposed production code.
var forbiddenPatterns = []string{
	"console.log(",
	"debugger",
	"eval(",
	"child_process",
}

// ForbiddenPatterns scans proposed files for disallowed constructs.
type ForbiddenPatterns struct{}

func (*ForbiddenPatterns) Code() string    { return "forbidden-patterns" }
func (*ForbiddenPatterns) Name() string    { return "Forbidden Patterns" }
func (*ForbiddenPatterns) Gate() int       { return 1 }
func (*ForbiddenPatterns) Order() int      { return 0 }
func (*ForbiddenPatterns) HardBlock() bool { return true }

func (v *ForbiddenPatterns) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	var violations []string
	for _, path := range sortedKeys(gc.ProposedFiles) {
		content := gc.ProposedFiles[path]
		for _, pat := range forbiddenPatterns {
			if strings.Contains(content, pat) {
				violations = append(violations, fmt.Sprintf("%s: %s", path, pat))
			}
		}
	}

	res := result(v, gate.StatusPassed, "")
	if len(violations) > 0 {
		res.Status = gate.StatusFailed
		res.Message = fmt.Sprintf("%d forbidden patterns found", len(violations))
		res.Details = &gate.Details{Kind: gate.DetailsViolations, Violations: violations}
	}
	return res, nil
}

// incompleteMarkers indicate stubbed-out implementations.
var incompleteMarkers = []string{
	"not implemented",
	"NotImplementedError",
	"// TODO: implement",
	"/* TODO",
	"raise NotImplemented",
}

// IncompleteCode rejects placeholder implementations in proposed files.
type IncompleteCode struct{}

func (*IncompleteCode) Code() string    { return "incomplete-code" }
func (*IncompleteCode) Name() string    { return "Incomplete Code" }
func (*IncompleteCode) Gate() int       { return 1 }
func (*IncompleteCode) Order() int      { return 1 }
func (*IncompleteCode) HardBlock() bool { return true }

func (v *IncompleteCode) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	var incomplete []string
	for _, path := range sortedKeys(gc.ProposedFiles) {
		content := gc.ProposedFiles[path]
		for _, marker := range incompleteMarkers {
			if strings.Contains(content, marker) {
				incomplete = append(incomplete, path)
				break
			}
		}
	}

	res := result(v, gate.StatusPassed, "")
	if len(incomplete) > 0 {
		res.Status = gate.StatusFailed
		res.Message = fmt.Sprintf("%d files look incomplete", len(incomplete))
		res.Details = &gate.Details{Kind: gate.DetailsViolations, IncompleteFiles: incomplete}
	}
	return res, nil
}

// maxFileBytes is the advisory size threshold for a single proposed file.
const maxFileBytes = 64 * 1024

// FileSizeAdvisory warns on unusually large proposed files. Soft signal.
type FileSizeAdvisory struct{}

func (*FileSizeAdvisory) Code() string    { return "file-size" }
func (*FileSizeAdvisory) Name() string    { return "File Size Advisory" }
func (*FileSizeAdvisory) Gate() int       { return 1 }
func (*FileSizeAdvisory) Order() int      { return 2 }
func (*FileSizeAdvisory) HardBlock() bool { return false }

func (v *FileSizeAdvisory) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	var large []string
	for _, path := range sortedKeys(gc.ProposedFiles) {
		if len(gc.ProposedFiles[path]) > maxFileBytes {
			large = append(large, path)
		}
	}

	res := result(v, gate.StatusPassed, "")
	if len(large) > 0 {
		res.Status = gate.StatusWarning
		res.Message = fmt.Sprintf("%d files exceed %d bytes", len(large), maxFileBytes)
		res.Details = &gate.Details{Kind: gate.DetailsViolations, Violations: large}
	}
	return res, nil
}

// --- Gate 2: tests ---

// testSuffixes are accepted test file naming conventions.
var testSuffixes = []string{".spec.ts", ".spec.js", ".test.ts", ".test.js", "_test.go", "_test.py"}

// TestNaming verifies the declared test file follows a known convention.
type TestNaming struct{}

func (*TestNaming) Code() string    { return "test-naming" }
func (*TestNaming) Name() string    { return "Test Naming" }
func (*TestNaming) Gate() int       { return 2 }
func (*TestNaming) Order() int      { return 0 }
func (*TestNaming) HardBlock() bool { return true }

func (v *TestNaming) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	res := result(v, gate.StatusPassed, "")
	for _, suffix := range testSuffixes {
		if strings.HasSuffix(gc.TestPath, suffix) {
			return res, nil
		}
	}
	res.Status = gate.StatusFailed
	res.Message = fmt.Sprintf("test path %s does not match any known test naming convention", gc.TestPath)
	res.Details = gate.TextDetails("expected one of: " + strings.Join(testSuffixes, ", "))
	return res, nil
}

// DangerModeAdvisory flags runs executing with relaxed safety. Soft signal.
type DangerModeAdvisory struct{}

func (*DangerModeAdvisory) Code() string    { return "danger-mode" }
func (*DangerModeAdvisory) Name() string    { return "Danger Mode Advisory" }
func (*DangerModeAdvisory) Gate() int       { return 2 }
func (*DangerModeAdvisory) Order() int      { return 1 }
func (*DangerModeAdvisory) HardBlock() bool { return false }

func (v *DangerModeAdvisory) Execute(_ context.Context, gc *gate.Context) (gate.ValidatorResult, error) {
	res := result(v, gate.StatusPassed, "")
	if gc.DangerMode {
		res.Status = gate.StatusWarning
		res.Message = "run executes in danger mode; review before trusting output"
	}
	return res, nil
}

// --- helpers ---

// result seeds a ValidatorResult with the validator's static metadata.
func result(v gate.Validator, status gate.ValidatorStatus, msg string) gate.ValidatorResult {
	return gate.ValidatorResult{
		Code:      v.Code(),
		Name:      v.Name(),
		Gate:      v.Gate(),
		Order:     v.Order(),
		HardBlock: v.HardBlock(),
		Status:    status,
		Message:   msg,
	}
}

// sortedKeys returns map keys sorted for deterministic scanning order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
