package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gatewright"

// Metrics holds all Gatewright metric instruments. It implements the
// service metrics hook surface.
type Metrics struct {
	runsStarted     metric.Int64Counter
	runsCompleted   metric.Int64Counter
	gateDuration    metric.Float64Histogram
	stepTokens      metric.Int64Counter
	sandboxRejected metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.runsStarted, err = meter.Int64Counter("gatewright.runs.started",
		metric.WithDescription("Number of validation runs started"))
	if err != nil {
		return nil, err
	}

	m.runsCompleted, err = meter.Int64Counter("gatewright.runs.completed",
		metric.WithDescription("Number of validation runs reaching a terminal state"))
	if err != nil {
		return nil, err
	}

	m.gateDuration, err = meter.Float64Histogram("gatewright.gate.duration_seconds",
		metric.WithDescription("Gate execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.stepTokens, err = meter.Int64Counter("gatewright.step.tokens",
		metric.WithDescription("Tokens consumed by pipeline steps"))
	if err != nil {
		return nil, err
	}

	m.sandboxRejected, err = meter.Int64Counter("gatewright.sandbox.rejected",
		metric.WithDescription("Commands rejected by the sandbox, by layer"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RunStarted(ctx context.Context) {
	m.runsStarted.Add(ctx, 1)
}

func (m *Metrics) RunCompleted(ctx context.Context, status string) {
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) GateCompleted(ctx context.Context, gate int, passed bool, elapsed time.Duration) {
	m.gateDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.Int("gate", gate),
		attribute.Bool("passed", passed),
	))
}

func (m *Metrics) StepCompleted(ctx context.Context, phase string, inputTokens, outputTokens int64) {
	m.stepTokens.Add(ctx, inputTokens, metric.WithAttributes(
		attribute.String("phase", phase), attribute.String("direction", "input")))
	m.stepTokens.Add(ctx, outputTokens, metric.WithAttributes(
		attribute.String("phase", phase), attribute.String("direction", "output")))
}

func (m *Metrics) SandboxRejected(ctx context.Context, layer string) {
	m.sandboxRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}
