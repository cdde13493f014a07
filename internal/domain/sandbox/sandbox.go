// Package sandbox validates shell-like commands requested by LLM agents
// before they are forwarded to execution. Validation runs three layers,
// short-circuiting on the first rejection:
//
//  1. allowlist: the first token must be an allowed command
//  2. blocked patterns: structural shell metacharacters (chaining,
//     redirection, substitution)
//  3. dangerous tokens: destructive verbs, network tools, and sensitive
//     filesystem roots anywhere in the argument list
//
// Validation is a pure function of the command string and the config; the
// same input always yields the same verdict.
package sandbox

import (
	"fmt"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
)

// Layer identifies which validation layer rejected a command.
type Layer string

const (
	LayerNone      Layer = ""          // command allowed
	LayerAllowlist Layer = "allowlist" // first token not in allowlist
	LayerBlocklist Layer = "blocklist" // blocked shell metacharacter
	LayerInjection Layer = "injection" // dangerous token in arguments
)

// Result is the outcome of validating one command.
type Result struct {
	Allowed bool   `json:"allowed"`
	Layer   Layer  `json:"layer,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Config holds the sandbox rule set. There are no process-wide defaults;
// the config is passed explicitly into New.
type Config struct {
	AllowedCommands []string `yaml:"allowed_commands"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
	DangerousTokens []string `yaml:"dangerous_tokens"`
}

// DefaultConfig returns the standard rule set for agent tool execution.
func DefaultConfig() Config {
	return Config{
		AllowedCommands: []string{"npm", "npx", "node", "cat", "ls", "git", "find", "grep", "head", "tail", "wc"},
		BlockedPatterns: []string{";", "&&", "||", "|", ">>", ">", "<", "`", "$(", "${"},
		DangerousTokens: []string{"rm", "rmdir", "chmod", "chown", "mkfs", "dd", "kill", "curl", "wget", "nc", "ncat", "ssh", "scp", "sudo", "/etc/", "/dev/", "/proc/", "~/."},
	}
}

// Sandbox validates commands against a fixed rule set.
type Sandbox struct {
	allowed   map[string]bool
	blocked   []string
	dangerous []string
}

// New creates a Sandbox from the given config.
func New(cfg Config) *Sandbox {
	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[c] = true
	}
	return &Sandbox{
		allowed:   allowed,
		blocked:   cfg.BlockedPatterns,
		dangerous: cfg.DangerousTokens,
	}
}

// Validate checks a command line against all three layers.
// The returned Result reports the first rejecting layer, if any.
func (s *Sandbox) Validate(commandLine string) Result {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return Result{Allowed: false, Layer: LayerAllowlist, Reason: "empty command"}
	}

	if !s.allowed[fields[0]] {
		return Result{
			Allowed: false,
			Layer:   LayerAllowlist,
			Reason:  fmt.Sprintf("command %q not allowed", fields[0]),
		}
	}

	for _, pat := range s.blocked {
		if strings.Contains(commandLine, pat) {
			return Result{
				Allowed: false,
				Layer:   LayerBlocklist,
				Reason:  fmt.Sprintf("blocked pattern %q", pat),
			}
		}
	}

	// An allowed prefix can still smuggle a forbidden action as an argument
	// ("npm test --after rm something"), so every token is checked.
	for _, tok := range fields[1:] {
		for _, danger := range s.dangerous {
			if matchDanger(tok, danger) {
				return Result{
					Allowed: false,
					Layer:   LayerInjection,
					Reason:  fmt.Sprintf("dangerous pattern %q", danger),
				}
			}
		}
	}

	return Result{Allowed: true}
}

// matchDanger reports whether an argument token trips a dangerous token rule.
// Path-root rules ("/etc/", "~/.") match as substrings; verb rules ("rm",
// "curl") match whole tokens only, so "format" does not trip "rm".
func matchDanger(tok, danger string) bool {
	if strings.HasPrefix(danger, "/") || strings.HasPrefix(danger, "~") {
		return strings.Contains(tok, danger)
	}
	return tok == danger
}

// Err converts a rejecting Result into a security error. Returns nil for
// an allowed result. The dangerous payload itself is not echoed beyond the
// rejecting layer and matched rule.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("sandbox rejected command (%s layer): %s: %w", r.Layer, r.Reason, domain.ErrSecurity)
}
