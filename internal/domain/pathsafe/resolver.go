// Package pathsafe canonicalizes LLM-declared file paths against a project
// root. Every path that crosses the process boundary goes through Canonicalize
// before it may reach the filesystem.
package pathsafe

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
)

// ErrTraversal is returned when a declared path escapes the project root.
// It wraps domain.ErrSecurity so callers can treat it as a security rejection.
var ErrTraversal = fmt.Errorf("path traversal: %w", domain.ErrSecurity)

// Canonicalize resolves declared against root and returns an absolute path
// guaranteed to be a descendant of root. The result always uses forward
// slashes regardless of host platform, so stored paths compare stably.
//
// Fails with ErrTraversal when declared is absolute or when, after resolving
// ".." segments, it lands outside root.
func Canonicalize(declared, root string) (string, error) {
	if declared == "" {
		return "", fmt.Errorf("empty path: %w", domain.ErrValidation)
	}

	// Windows-style separators are accepted on input and normalized.
	declared = strings.ReplaceAll(declared, `\`, "/")

	if path.IsAbs(declared) || filepath.IsAbs(filepath.FromSlash(declared)) || hasVolume(declared) {
		return "", fmt.Errorf("absolute path %q rejected: %w", declared, ErrTraversal)
	}

	absRoot, err := filepath.Abs(filepath.FromSlash(root))
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	joined := filepath.Join(absRoot, filepath.FromSlash(declared))

	rel, err := filepath.Rel(absRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root: %w", declared, ErrTraversal)
	}

	return filepath.ToSlash(joined), nil
}

// Normalize renders a stored path with forward slashes and no redundant
// segments. It does not touch the filesystem.
func Normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// hasVolume catches Windows drive-letter paths ("C:/...") even when the
// host is not Windows, since declared paths come from untrusted input.
func hasVolume(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		(p[0] >= 'a' && p[0] <= 'z' || p[0] >= 'A' && p[0] <= 'Z')
}
