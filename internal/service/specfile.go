package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/pathsafe"
	"github.com/gatewright/gatewright/internal/domain/run"
	"github.com/gatewright/gatewright/internal/port/database"
)

// Manifest is the subset of the project manifest the run lifecycle reads.
// TestFilePath names where the spec file must live inside the project.
type Manifest struct {
	Name         string `json:"name,omitempty"`
	TestFilePath string `json:"test_file_path"`
}

// ReadManifest loads and parses a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// SpecStager moves LLM-authored spec files from their declared (often staged)
// location to the path the manifest demands, before any gate runs.
type SpecStager struct {
	store database.Store
}

// NewSpecStager creates a SpecStager persisting corrected paths through store.
func NewSpecStager(store database.Store) *SpecStager {
	return &SpecStager{store: store}
}

// EnsureSpecAtCorrectPath reconciles the run's declared test path with the
// manifest's expected location and returns the canonical absolute path.
//
// The declared path frequently points at a staging directory the authoring
// agent wrote into. Resolution rules, in order:
//
//   - declared and expected resolve to the same file: normalize only.
//   - the declared (staged) file exists: copy it over the expected location,
//     creating parent directories; a stale copy at the expected location is
//     overwritten.
//   - only the expected file exists: adopt it as-is.
//   - neither exists: the run cannot proceed ("spec file not found").
//
// The corrected path is persisted on the run before returning.
func (s *SpecStager) EnsureSpecAtCorrectPath(ctx context.Context, r *run.Run, projectRoot string, m *Manifest) (string, error) {
	if m == nil || m.TestFilePath == "" {
		return "", fmt.Errorf("manifest declares no test file path: %w", domain.ErrValidation)
	}

	expected, err := pathsafe.Canonicalize(m.TestFilePath, projectRoot)
	if err != nil {
		return "", fmt.Errorf("manifest test path: %w", err)
	}

	declared := expected
	if r.DeclaredTestPath != "" {
		declared, err = pathsafe.Canonicalize(r.DeclaredTestPath, projectRoot)
		if err != nil {
			return "", fmt.Errorf("declared test path: %w", err)
		}
	}

	declaredExists := fileExists(declared)
	expectedExists := fileExists(expected)

	switch {
	case declared == expected:
		if !expectedExists {
			return "", fmt.Errorf("spec file not found at %s: %w", expected, domain.ErrValidation)
		}
	case declaredExists:
		// Staged copy wins over whatever sits at the expected location.
		if err := copyFile(declared, expected); err != nil {
			return "", fmt.Errorf("stage spec file: %w", err)
		}
		slog.Info("spec file staged to canonical location",
			"run_id", r.ID, "from", declared, "to", expected)
	case expectedExists:
		slog.Debug("spec file already at expected location", "run_id", r.ID, "path", expected)
	default:
		return "", fmt.Errorf("spec file not found at %s or %s: %w", declared, expected, domain.ErrValidation)
	}

	if err := s.store.UpdateRunPath(ctx, r.ID, expected); err != nil {
		return "", fmt.Errorf("persist canonical path: %w", err)
	}
	r.CanonicalTestPath = expected
	return expected, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(filepath.FromSlash(p))
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(filepath.FromSlash(src))
	if err != nil {
		return err
	}
	dstFS := filepath.FromSlash(dst)
	if err := os.MkdirAll(filepath.Dir(dstFS), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dstFS, data, 0o644)
}
