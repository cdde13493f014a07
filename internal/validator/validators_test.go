package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gatewright/gatewright/internal/domain/gate"
)

func TestRegistryOrdering(t *testing.T) {
	r := Defaults()

	gates := r.Gates()
	if len(gates) != 3 {
		t.Fatalf("expected 3 gates, got %v", gates)
	}
	for i, g := range gates {
		if g != i {
			t.Errorf("gates should be ascending, got %v", gates)
		}
	}

	for _, g := range gates {
		vs := r.ForGate(g)
		for i := 1; i < len(vs); i++ {
			if vs[i-1].Order() > vs[i].Order() {
				t.Errorf("gate %d validators out of order", g)
			}
		}
		for _, v := range vs {
			if v.Gate() != g {
				t.Errorf("validator %s grouped under wrong gate", v.Code())
			}
		}
	}
}

func TestManifestPresent(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifest, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := &ManifestPresent{}

	res, err := v.Execute(context.Background(), &gate.Context{ManifestPath: manifest})
	if err != nil || res.Status != gate.StatusPassed {
		t.Errorf("existing manifest should pass: %v %v", res.Status, err)
	}

	res, _ = v.Execute(context.Background(), &gate.Context{})
	if res.Status != gate.StatusFailed {
		t.Error("missing manifest declaration should fail")
	}

	res, _ = v.Execute(context.Background(), &gate.Context{ManifestPath: filepath.Join(dir, "nope.json")})
	if res.Status != gate.StatusFailed {
		t.Error("nonexistent manifest should fail")
	}
}

func TestForbiddenPatterns(t *testing.T) {
	v := &ForbiddenPatterns{}

	res, _ := v.Execute(context.Background(), &gate.Context{ProposedFiles: map[string]string{
		"src/ok.ts": "export const x = 1;",
	}})
	if res.Status != gate.StatusPassed {
		t.Errorf("clean file should pass, got %s", res.Status)
	}

	res, _ = v.Execute(context.Background(), &gate.Context{ProposedFiles: map[string]string{
		"src/a.ts": "console.log('x'); debugger",
		"src/b.ts": "clean",
	}})
	if res.Status != gate.StatusFailed {
		t.Fatalf("violations should fail, got %s", res.Status)
	}
	if res.Details == nil || res.Details.Kind != gate.DetailsViolations {
		t.Fatal("expected violations details")
	}
	if len(res.Details.Violations) != 2 {
		t.Errorf("expected 2 violations, got %v", res.Details.Violations)
	}
}

func TestIncompleteCode(t *testing.T) {
	v := &IncompleteCode{}
	res, _ := v.Execute(context.Background(), &gate.Context{ProposedFiles: map[string]string{
		"src/stub.ts": "throw new Error('not implemented')",
	}})
	if res.Status != gate.StatusFailed {
		t.Fatalf("stub should fail, got %s", res.Status)
	}
	if len(res.Details.IncompleteFiles) != 1 || res.Details.IncompleteFiles[0] != "src/stub.ts" {
		t.Errorf("unexpected incomplete files: %v", res.Details.IncompleteFiles)
	}
}

func TestFileSizeAdvisoryIsSoft(t *testing.T) {
	v := &FileSizeAdvisory{}
	if v.HardBlock() {
		t.Fatal("file-size must be a soft validator")
	}
	big := make([]byte, maxFileBytes+1)
	res, _ := v.Execute(context.Background(), &gate.Context{ProposedFiles: map[string]string{
		"src/huge.ts": string(big),
	}})
	if res.Status != gate.StatusWarning {
		t.Errorf("oversized file should warn, got %s", res.Status)
	}
}

func TestTestNaming(t *testing.T) {
	v := &TestNaming{}

	res, _ := v.Execute(context.Background(), &gate.Context{TestPath: "/p/src/thing.spec.ts"})
	if res.Status != gate.StatusPassed {
		t.Errorf(".spec.ts should pass, got %s", res.Status)
	}

	res, _ = v.Execute(context.Background(), &gate.Context{TestPath: "/p/src/thing.ts"})
	if res.Status != gate.StatusFailed {
		t.Errorf("non-test name should fail, got %s", res.Status)
	}
}

func TestDangerModeAdvisory(t *testing.T) {
	v := &DangerModeAdvisory{}
	res, _ := v.Execute(context.Background(), &gate.Context{DangerMode: true})
	if res.Status != gate.StatusWarning {
		t.Errorf("danger mode should warn, got %s", res.Status)
	}
	res, _ = v.Execute(context.Background(), &gate.Context{})
	if res.Status != gate.StatusPassed {
		t.Errorf("normal mode should pass, got %s", res.Status)
	}
}
