package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/run"
)

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEnsureSpecMovesStagedFile(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "artifacts/out-1/user.spec.ts", "it('works')")

	store := newFakeStore()
	r := &run.Run{ID: "r1", DeclaredTestPath: "artifacts/out-1/user.spec.ts"}
	store.runs[r.ID] = r

	s := NewSpecStager(store)
	got, err := s.EnsureSpecAtCorrectPath(context.Background(), r, root,
		&Manifest{TestFilePath: "src/user.spec.ts"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "src/user.spec.ts") {
		t.Errorf("expected canonical path, got %s", got)
	}
	data, err := os.ReadFile(filepath.Join(root, "src", "user.spec.ts"))
	if err != nil || string(data) != "it('works')" {
		t.Errorf("staged content not copied: %q %v", data, err)
	}
	if r.CanonicalTestPath != got {
		t.Error("run should carry the corrected path")
	}
	if len(store.pathUpdates) != 1 {
		t.Error("corrected path should be persisted")
	}
}

func TestEnsureSpecStagedOverwritesStaleCopy(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "artifacts/out-2/user.spec.ts", "fresh")
	writeProjectFile(t, root, "src/user.spec.ts", "stale")

	store := newFakeStore()
	r := &run.Run{ID: "r1", DeclaredTestPath: "artifacts/out-2/user.spec.ts"}
	store.runs[r.ID] = r

	s := NewSpecStager(store)
	if _, err := s.EnsureSpecAtCorrectPath(context.Background(), r, root,
		&Manifest{TestFilePath: "src/user.spec.ts"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "src", "user.spec.ts"))
	if string(data) != "fresh" {
		t.Errorf("staged copy must overwrite, got %q", data)
	}
}

func TestEnsureSpecAdoptsExistingCanonicalFile(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/user.spec.ts", "already here")

	store := newFakeStore()
	r := &run.Run{ID: "r1", DeclaredTestPath: "artifacts/gone/user.spec.ts"}
	store.runs[r.ID] = r

	s := NewSpecStager(store)
	got, err := s.EnsureSpecAtCorrectPath(context.Background(), r, root,
		&Manifest{TestFilePath: "src/user.spec.ts"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "src/user.spec.ts") {
		t.Errorf("unexpected path %s", got)
	}
}

func TestEnsureSpecMissingEverywhereFails(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	r := &run.Run{ID: "r1", DeclaredTestPath: "artifacts/x/user.spec.ts"}
	store.runs[r.ID] = r

	s := NewSpecStager(store)
	_, err := s.EnsureSpecAtCorrectPath(context.Background(), r, root,
		&Manifest{TestFilePath: "src/user.spec.ts"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "spec file not found") {
		t.Errorf("error should name the missing file: %v", err)
	}
}

func TestEnsureSpecRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	r := &run.Run{ID: "r1", DeclaredTestPath: "../outside.spec.ts"}
	store.runs[r.ID] = r

	s := NewSpecStager(store)
	_, err := s.EnsureSpecAtCorrectPath(context.Background(), r, root,
		&Manifest{TestFilePath: "src/user.spec.ts"})
	if !errors.Is(err, domain.ErrSecurity) {
		t.Fatalf("expected security rejection, got %v", err)
	}
}

func TestReadManifest(t *testing.T) {
	root := t.TempDir()
	p := writeProjectFile(t, root, "manifest.json", `{"name":"demo","test_file_path":"src/demo.spec.ts"}`)

	m, err := ReadManifest(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.TestFilePath != "src/demo.spec.ts" {
		t.Errorf("unexpected manifest: %+v", m)
	}

	if _, err := ReadManifest(filepath.Join(root, "missing.json")); err == nil {
		t.Error("missing manifest should error")
	}
}
