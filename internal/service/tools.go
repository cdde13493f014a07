package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/pathsafe"
	"github.com/gatewright/gatewright/internal/port/provider"
)

// maxToolFileBytes caps the content returned by read_file.
const maxToolFileBytes = 128 * 1024

// Tool is one capability offered to the model during a pipeline phase.
// Execute returns the string fed back as the tool result message.
type Tool interface {
	Name() string
	Spec() provider.ToolSpec
	Execute(ctx context.Context, args map[string]any, projectRoot string) (string, error)
}

// Toolset is the fixed set of tools for a phase, keyed by name.
type Toolset struct {
	tools map[string]Tool
	order []string
}

// NewToolset builds a toolset preserving registration order for Specs.
func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := ts.tools[t.Name()]; dup {
			panic("duplicate tool: " + t.Name())
		}
		ts.tools[t.Name()] = t
		ts.order = append(ts.order, t.Name())
	}
	return ts
}

// DefaultToolset returns the standard agent tools. Shell execution goes
// through the sandbox; file access goes through path canonicalization.
func DefaultToolset(exec *SandboxExec) *Toolset {
	return NewToolset(
		&ReadFileTool{},
		&WriteFileTool{},
		&ListDirTool{},
		&RunCommandTool{exec: exec},
	)
}

// Specs returns the tool specs in registration order.
func (ts *Toolset) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(ts.order))
	for _, name := range ts.order {
		specs = append(specs, ts.tools[name].Spec())
	}
	return specs
}

// Get returns a tool by name.
func (ts *Toolset) Get(name string) (Tool, bool) {
	t, ok := ts.tools[name]
	return t, ok
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q: %w", key, domain.ErrValidation)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string: %w", key, domain.ErrValidation)
	}
	return s, nil
}

// ReadFileTool reads a project-relative file.
type ReadFileTool struct{}

func (*ReadFileTool) Name() string { return "read_file" }

func (*ReadFileTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        "read_file",
		Description: "Read a file relative to the project root.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Project-relative file path"},
			},
			"required": []string{"path"},
		},
	}
}

func (*ReadFileTool) Execute(_ context.Context, args map[string]any, projectRoot string) (string, error) {
	rel, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	abs, err := pathsafe.Canonicalize(rel, projectRoot)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.FromSlash(abs))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	if len(data) > maxToolFileBytes {
		return string(data[:maxToolFileBytes]) + "\n... (truncated)", nil
	}
	return string(data), nil
}

// WriteFileTool writes a project-relative file, creating parent directories.
type WriteFileTool struct{}

func (*WriteFileTool) Name() string { return "write_file" }

func (*WriteFileTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file relative to the project root.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "Project-relative file path"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			},
			"required": []string{"path", "content"},
		},
	}
}

func (*WriteFileTool) Execute(_ context.Context, args map[string]any, projectRoot string) (string, error) {
	rel, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}
	abs, err := pathsafe.Canonicalize(rel, projectRoot)
	if err != nil {
		return "", err
	}
	fsPath := filepath.FromSlash(abs)
	if err := os.MkdirAll(filepath.Dir(fsPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(fsPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), pathsafe.Normalize(rel)), nil
}

// ListDirTool lists a project-relative directory, one entry per line.
// Directories carry a trailing slash.
type ListDirTool struct{}

func (*ListDirTool) Name() string { return "list_dir" }

func (*ListDirTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        "list_dir",
		Description: "List entries of a directory relative to the project root.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Project-relative directory path, \".\" for the root"},
			},
			"required": []string{"path"},
		},
	}
}

func (*ListDirTool) Execute(_ context.Context, args map[string]any, projectRoot string) (string, error) {
	rel, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	abs, err := pathsafe.Canonicalize(rel, projectRoot)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(filepath.FromSlash(abs))
	if err != nil {
		return "", fmt.Errorf("list %s: %w", rel, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// RunCommandTool executes a sandboxed shell command in the project root.
type RunCommandTool struct {
	exec *SandboxExec
}

func (*RunCommandTool) Name() string { return "run_command" }

func (*RunCommandTool) Spec() provider.ToolSpec {
	return provider.ToolSpec{
		Name:        "run_command",
		Description: "Run an allowlisted command in the project root. Shell operators are rejected.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "Command line to execute"},
			},
			"required": []string{"command"},
		},
	}
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any, projectRoot string) (string, error) {
	commandLine, err := stringArg(args, "command")
	if err != nil {
		return "", err
	}
	return t.exec.Run(ctx, commandLine, projectRoot)
}
