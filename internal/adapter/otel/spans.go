package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatewright/gatewright/internal/domain/agentrun"
)

const tracerName = "gatewright"

// StartSubmitSpan starts a span covering one run submission.
func StartSubmitSpan(ctx context.Context, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run.submit",
		trace.WithAttributes(attribute.String("project.id", projectID)),
	)
}

// StartPipelineSpan starts a span covering one agent pipeline execution.
func StartPipelineSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("run.id", runID)),
	)
}

// AddRunID attaches the run id to an already started span.
func AddRunID(span trace.Span, runID string) {
	span.SetAttributes(attribute.String("run.id", runID))
}

// StepTracer is a step observer that opens one span per pipeline step.
// Spans are keyed by step id; the start and end hooks each fire exactly
// once per step, so entries never leak.
type StepTracer struct {
	mu     sync.Mutex
	active map[string]trace.Span
}

// NewStepTracer creates a StepTracer.
func NewStepTracer() *StepTracer {
	return &StepTracer{active: make(map[string]trace.Span)}
}

func (t *StepTracer) OnStepStart(ctx context.Context, st *agentrun.Step) {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.step",
		trace.WithAttributes(
			attribute.String("agent_run.id", st.AgentRunID),
			attribute.String("step.phase", string(st.Phase)),
			attribute.Int("step.number", st.StepNumber),
		),
	)
	t.mu.Lock()
	t.active[st.ID] = span
	t.mu.Unlock()
}

func (t *StepTracer) OnStepComplete(_ context.Context, st *agentrun.Step) {
	if span := t.take(st.ID); span != nil {
		span.SetAttributes(attribute.Int("step.iterations", st.Iterations))
		span.End()
	}
}

func (t *StepTracer) OnStepFail(_ context.Context, st *agentrun.Step, err error) {
	if span := t.take(st.ID); span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
	}
}

func (t *StepTracer) take(stepID string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.active[stepID]
	if !ok {
		return nil
	}
	delete(t.active, stepID)
	return span
}
