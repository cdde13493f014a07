package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gatewright/gatewright/internal/domain/event"
	"github.com/gatewright/gatewright/internal/domain/gate"
	"github.com/gatewright/gatewright/internal/port/broadcast"
	"github.com/gatewright/gatewright/internal/validator"
)

// GateEngine executes the ordered gate pipeline against a run context.
// Validators within one gate run concurrently (they are read-only with
// respect to the project), but aggregation is deterministic: results are
// sorted by declared order before reporting.
type GateEngine struct {
	registry         *validator.Registry
	hub              broadcast.Broadcaster
	promoteWarnings  bool
	validatorTimeout time.Duration
}

// EngineResult is the outcome of running all gates.
type EngineResult struct {
	Passed      bool              `json:"passed"`
	GateResults []gate.GateResult `json:"gate_results"`
}

// NewGateEngine creates a GateEngine. promoteWarnings enables the
// "no soft gates" policy: warnings from hard-block validators count as
// failures across all gates.
func NewGateEngine(registry *validator.Registry, hub broadcast.Broadcaster, promoteWarnings bool, validatorTimeout time.Duration) *GateEngine {
	if hub == nil {
		hub = broadcast.Noop{}
	}
	if validatorTimeout <= 0 {
		validatorTimeout = 60 * time.Second
	}
	return &GateEngine{
		registry:         registry,
		hub:              hub,
		promoteWarnings:  promoteWarnings,
		validatorTimeout: validatorTimeout,
	}
}

// RunGate executes a single gate and returns its aggregated result.
func (e *GateEngine) RunGate(ctx context.Context, gateNumber int, gc *gate.Context) (gate.GateResult, error) {
	validators := e.registry.ForGate(gateNumber)
	if len(validators) == 0 {
		return gate.GateResult{}, fmt.Errorf("no validators registered for gate %d", gateNumber)
	}

	e.hub.Emit(ctx, event.New(event.TypeGateStarted, event.LevelInfo, "gates",
		fmt.Sprintf("gate %d started", gateNumber),
		map[string]string{"run_id": gc.RunID, "gate": fmt.Sprintf("%d", gateNumber)}))

	results := make([]gate.ValidatorResult, len(validators))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range validators {
		g.Go(func() error {
			results[i] = e.executeOne(gctx, v, gc)
			return nil
		})
	}
	_ = g.Wait() // executeOne never returns an error; crashes become FAILED results

	sort.Slice(results, func(i, j int) bool { return results[i].Order < results[j].Order })

	gr := gate.Aggregate(gateNumber, e.registry.GateName(gateNumber), results, e.promoteWarnings)

	level := event.LevelInfo
	if !gr.Passed {
		level = event.LevelError
	}
	e.hub.Emit(ctx, event.New(event.TypeGateCompleted, level, "gates",
		fmt.Sprintf("gate %d completed: passed=%t", gateNumber, gr.Passed),
		map[string]string{"run_id": gc.RunID, "gate": fmt.Sprintf("%d", gateNumber)}))

	return gr, nil
}

// RunAll executes gates in ascending order. Gate N+1 only runs when gate N
// passed; on a gate failure the partial result set is returned immediately.
// The abort callback is checked at every gate boundary.
func (e *GateEngine) RunAll(ctx context.Context, gc *gate.Context, aborted func() bool) (*EngineResult, error) {
	res := &EngineResult{Passed: true}

	for _, gateNumber := range e.registry.Gates() {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if aborted != nil && aborted() {
			return res, context.Canceled
		}

		gr, err := e.RunGate(ctx, gateNumber, gc)
		if err != nil {
			return res, err
		}
		res.GateResults = append(res.GateResults, gr)

		if !gr.Passed {
			res.Passed = false
			return res, nil
		}
	}

	return res, nil
}

// executeOne runs a single validator, converting panics and internal errors
// into FAILED results. A validator crash never crashes the engine.
func (e *GateEngine) executeOne(ctx context.Context, v gate.Validator, gc *gate.Context) (res gate.ValidatorResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("validator panicked", "code", v.Code(), "panic", r)
			res = failedResult(v, "validator crashed", fmt.Sprintf("panic: %v", r))
		}
	}()

	vctx, cancel := context.WithTimeout(ctx, e.validatorTimeout)
	defer cancel()

	out, err := v.Execute(vctx, gc)
	if err != nil {
		slog.Warn("validator errored", "code", v.Code(), "error", err)
		return failedResult(v, "validator errored", err.Error())
	}
	return out
}

// failedResult builds a well-formed FAILED result from a validator's static
// metadata and an internal error.
func failedResult(v gate.Validator, msg, detail string) gate.ValidatorResult {
	return gate.ValidatorResult{
		Code:      v.Code(),
		Name:      v.Name(),
		Gate:      v.Gate(),
		Order:     v.Order(),
		HardBlock: v.HardBlock(),
		Status:    gate.StatusFailed,
		Message:   msg,
		Details:   gate.TextDetails(detail),
	}
}
