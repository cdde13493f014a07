package service

import (
	"context"
	"time"
)

// Metrics is the instrumentation hook surface for the run lifecycle and the
// agent pipeline. The OTel adapter provides the real implementation; tests
// and metric-less deployments use NoopMetrics.
type Metrics interface {
	RunStarted(ctx context.Context)
	RunCompleted(ctx context.Context, status string)
	GateCompleted(ctx context.Context, gate int, passed bool, elapsed time.Duration)
	StepCompleted(ctx context.Context, phase string, inputTokens, outputTokens int64)
	SandboxRejected(ctx context.Context, layer string)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RunStarted(context.Context)                              {}
func (NoopMetrics) RunCompleted(context.Context, string)                    {}
func (NoopMetrics) GateCompleted(context.Context, int, bool, time.Duration) {}
func (NoopMetrics) StepCompleted(context.Context, string, int64, int64)     {}
func (NoopMetrics) SandboxRejected(context.Context, string)                 {}
