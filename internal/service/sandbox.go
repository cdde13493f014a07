package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatewright/gatewright/internal/domain/sandbox"
	"github.com/gatewright/gatewright/internal/port/cache"
)

// maxCommandOutput caps the output returned to the model from one command.
const maxCommandOutput = 32 * 1024

// SandboxExec validates agent-requested commands through the three-layer
// sandbox and executes allowed ones without a shell. Verdicts are memoized
// in the L1 cache keyed by the command line, since validation is a pure
// function of the rule set.
type SandboxExec struct {
	box     *sandbox.Sandbox
	cache   cache.Cache
	metrics Metrics
	timeout time.Duration
	ttl     time.Duration
}

// NewSandboxExec wires a SandboxExec. cache and metrics may be nil.
func NewSandboxExec(cfg sandbox.Config, c cache.Cache, metrics Metrics, timeout, verdictTTL time.Duration) *SandboxExec {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &SandboxExec{
		box:     sandbox.New(cfg),
		cache:   c,
		metrics: metrics,
		timeout: timeout,
		ttl:     verdictTTL,
	}
}

// Check validates a command line, consulting the verdict cache first.
func (s *SandboxExec) Check(ctx context.Context, commandLine string) sandbox.Result {
	key := verdictKey(commandLine)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var res sandbox.Result
			if json.Unmarshal(data, &res) == nil {
				return res
			}
		}
	}

	res := s.box.Validate(commandLine)
	if !res.Allowed {
		s.metrics.SandboxRejected(ctx, string(res.Layer))
		slog.Warn("sandbox rejected command", "layer", res.Layer, "reason", res.Reason)
	}

	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, key, data, s.ttl)
		}
	}
	return res
}

// Run validates and executes a command inside workdir. The command runs
// without a shell, so the blocked metacharacters could not take effect even
// if they slipped through. Output is combined stdout+stderr, truncated.
func (s *SandboxExec) Run(ctx context.Context, commandLine, workdir string) (string, error) {
	if res := s.Check(ctx, commandLine); !res.Allowed {
		return "", res.Err()
	}

	fields := strings.Fields(commandLine)

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, fields[0], fields[1:]...)
	cmd.Dir = filepath.FromSlash(workdir)

	out, err := cmd.CombinedOutput()
	output := truncateOutput(string(out))
	if cctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s", s.timeout)
	}
	if err != nil {
		// Non-zero exit is a result the model needs to see, not an outage.
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}

func verdictKey(commandLine string) string {
	sum := sha256.Sum256([]byte(commandLine))
	return "sandbox:" + hex.EncodeToString(sum[:])
}

func truncateOutput(s string) string {
	if len(s) <= maxCommandOutput {
		return s
	}
	return s[:maxCommandOutput] + "\n... (truncated)"
}
