package pathsafe_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/pathsafe"
)

func TestCanonicalizeSimple(t *testing.T) {
	got, err := pathsafe.Canonicalize("src/app.spec.ts", "/work/proj")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if got != "/work/proj/src/app.spec.ts" {
		t.Errorf("unexpected canonical path: %q", got)
	}
}

func TestCanonicalizeRejectsParentEscape(t *testing.T) {
	_, err := pathsafe.Canonicalize("../outside.spec.ts", "/work/proj")
	if !errors.Is(err, pathsafe.ErrTraversal) {
		t.Fatalf("expected ErrTraversal, got: %v", err)
	}
	if !errors.Is(err, domain.ErrSecurity) {
		t.Error("traversal error should wrap domain.ErrSecurity")
	}
}

func TestCanonicalizeRejectsNestedEscape(t *testing.T) {
	_, err := pathsafe.Canonicalize("a/b/../../../etc/passwd", "/work/proj")
	if !errors.Is(err, pathsafe.ErrTraversal) {
		t.Fatalf("expected ErrTraversal, got: %v", err)
	}
}

func TestCanonicalizeRejectsAbsolute(t *testing.T) {
	for _, p := range []string{"/etc/passwd", `C:\windows\system32`, "C:/temp/x"} {
		if _, err := pathsafe.Canonicalize(p, "/work/proj"); !errors.Is(err, pathsafe.ErrTraversal) {
			t.Errorf("expected ErrTraversal for %q, got: %v", p, err)
		}
	}
}

func TestCanonicalizeRejectsEmpty(t *testing.T) {
	if _, err := pathsafe.Canonicalize("", "/work/proj"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestCanonicalizeAllowsDotDotWithinRoot(t *testing.T) {
	got, err := pathsafe.Canonicalize("src/../tests/x.spec.ts", "/work/proj")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if got != "/work/proj/tests/x.spec.ts" {
		t.Errorf("unexpected canonical path: %q", got)
	}
}

func TestCanonicalizeNormalizesBackslashes(t *testing.T) {
	got, err := pathsafe.Canonicalize(`src\deep\file.spec.ts`, "/work/proj")
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if strings.Contains(got, `\`) {
		t.Errorf("canonical path should use forward slashes: %q", got)
	}
}

func TestCanonicalizeNeverReturnsOutsideRoot(t *testing.T) {
	inputs := []string{
		"x", "a/b/c", "..", "../..", "./..", "a/../..", "a/../../b",
		"....//....//etc", "a/b/../../..",
	}
	for _, in := range inputs {
		got, err := pathsafe.Canonicalize(in, "/work/proj")
		if err != nil {
			continue
		}
		if !strings.HasPrefix(got, "/work/proj") {
			t.Errorf("Canonicalize(%q) returned path outside root: %q", in, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := pathsafe.Normalize(`artifacts\out-1\spec.ts`); got != "artifacts/out-1/spec.ts" {
		t.Errorf("unexpected normalized path: %q", got)
	}
	if got := pathsafe.Normalize("a//b/./c"); got != "a/b/c" {
		t.Errorf("unexpected normalized path: %q", got)
	}
}
