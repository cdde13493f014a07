package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatewright/gatewright/internal/config"
	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/agentrun"
	"github.com/gatewright/gatewright/internal/domain/budget"
	"github.com/gatewright/gatewright/internal/domain/event"
	"github.com/gatewright/gatewright/internal/port/broadcast"
	"github.com/gatewright/gatewright/internal/port/database"
	"github.com/gatewright/gatewright/internal/port/messagequeue"
	"github.com/gatewright/gatewright/internal/port/provider"
)

// StepObserver receives step lifecycle callbacks. Each hook fires exactly
// once per step regardless of how many provider iterations the step takes.
type StepObserver interface {
	OnStepStart(ctx context.Context, st *agentrun.Step)
	OnStepComplete(ctx context.Context, st *agentrun.Step)
	OnStepFail(ctx context.Context, st *agentrun.Step, err error)
}

// NoopObserver ignores all step callbacks.
type NoopObserver struct{}

func (NoopObserver) OnStepStart(context.Context, *agentrun.Step)       {}
func (NoopObserver) OnStepComplete(context.Context, *agentrun.Step)    {}
func (NoopObserver) OnStepFail(context.Context, *agentrun.Step, error) {}

// PhasePlan configures one phase of a pipeline execution.
type PhasePlan struct {
	Phase        agentrun.Phase
	Provider     string
	Model        string
	SystemPrompt string
	Prompt       string
}

// ErrStalled is returned when the model repeats itself without progressing.
var ErrStalled = fmt.Errorf("pipeline stalled: model repeats without progress")

// Pipeline drives multi-phase agent executions: one step per phase, each
// step an iterate-until-stop tool loop against an LLM provider, with token
// budgets enforced after every call.
type Pipeline struct {
	store     database.Store
	providers *provider.Registry
	tools     *Toolset
	hub       broadcast.Broadcaster
	queue     messagequeue.Queue
	metrics   Metrics
	observer  StepObserver
	prices    agentrun.PriceTable
	cfg       config.Pipeline
}

// NewPipeline wires a Pipeline. hub, queue, metrics and observer may be nil.
func NewPipeline(store database.Store, providers *provider.Registry, tools *Toolset, hub broadcast.Broadcaster, queue messagequeue.Queue, metrics Metrics, observer StepObserver, prices agentrun.PriceTable, cfg config.Pipeline) *Pipeline {
	if hub == nil {
		hub = broadcast.Noop{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	if prices == nil {
		prices = agentrun.DefaultPrices()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 25
	}
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = 5
	}
	return &Pipeline{
		store:     store,
		providers: providers,
		tools:     tools,
		hub:       hub,
		queue:     queue,
		metrics:   metrics,
		observer:  observer,
		prices:    prices,
		cfg:       cfg,
	}
}

// Execute runs the given phases in order as one agent run. A failing phase
// fails the run; later phases do not execute. Totals are recomputed from
// the append-only steps after every step, so a crash between step writes
// never double-counts.
func (p *Pipeline) Execute(ctx context.Context, runID, projectRoot string, phases []PhasePlan) (*agentrun.AgentRun, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases given: %w", domain.ErrValidation)
	}

	ar := &agentrun.AgentRun{
		ID:        uuid.NewString(),
		RunID:     runID,
		Status:    agentrun.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := p.store.CreateAgentRun(ctx, ar); err != nil {
		return nil, fmt.Errorf("create agent run: %w", err)
	}

	for i, phase := range phases {
		if err := p.runStep(ctx, ar, i+1, phase, projectRoot); err != nil {
			if cerr := p.store.CompleteAgentRun(ctx, ar.ID, agentrun.StatusFailed, err.Error()); cerr != nil {
				slog.Error("complete agent run", "agent_run_id", ar.ID, "error", cerr)
			}
			final, aerr := p.store.AggregateSteps(ctx, ar.ID)
			if aerr == nil {
				final.Status = agentrun.StatusFailed
				final.Error = err.Error()
				return final, err
			}
			return nil, err
		}
	}

	if err := p.store.CompleteAgentRun(ctx, ar.ID, agentrun.StatusCompleted, ""); err != nil {
		slog.Error("complete agent run", "agent_run_id", ar.ID, "error", err)
	}
	final, err := p.store.AggregateSteps(ctx, ar.ID)
	if err != nil {
		return nil, fmt.Errorf("aggregate steps: %w", err)
	}
	final.Status = agentrun.StatusCompleted
	return final, nil
}

// runStep executes one phase as one step. Observer hooks fire exactly once.
func (p *Pipeline) runStep(ctx context.Context, ar *agentrun.AgentRun, stepNumber int, phase PhasePlan, projectRoot string) error {
	prov, err := p.providers.Get(phase.Provider)
	if err != nil {
		return err
	}

	st := &agentrun.Step{
		ID:         uuid.NewString(),
		AgentRunID: ar.ID,
		StepNumber: stepNumber,
		Phase:      phase.Phase,
		Provider:   phase.Provider,
		Model:      phase.Model,
		Status:     agentrun.StepRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := p.store.CreateStep(ctx, st); err != nil {
		return fmt.Errorf("create step: %w", err)
	}

	p.observer.OnStepStart(ctx, st)
	p.hub.Emit(ctx, event.New(event.TypeStepStarted, event.LevelInfo, string(phase.Phase),
		fmt.Sprintf("step %d started", stepNumber),
		map[string]string{"agent_run_id": ar.ID, "phase": string(phase.Phase)}))

	loopErr := p.iterate(ctx, prov, phase, st, projectRoot)

	now := time.Now().UTC()
	st.CompletedAt = &now
	st.CostUSD = p.prices.Estimate(phase.Model, st.Usage)

	if loopErr != nil {
		st.Status = agentrun.StepFailed
		st.Error = loopErr.Error()
	} else {
		st.Status = agentrun.StepCompleted
	}
	if err := p.store.CompleteStep(ctx, st); err != nil {
		slog.Error("complete step", "step", stepNumber, "error", err)
	}
	p.publishStep(ctx, st)
	p.metrics.StepCompleted(ctx, string(phase.Phase), st.Usage.InputTokens, st.Usage.OutputTokens)

	if loopErr != nil {
		p.observer.OnStepFail(ctx, st, loopErr)
		p.hub.Emit(ctx, event.New(event.TypeStepFailed, event.LevelError, string(phase.Phase),
			fmt.Sprintf("step %d failed: %s", stepNumber, loopErr),
			map[string]string{"agent_run_id": ar.ID}))
		return fmt.Errorf("phase %s: %w", phase.Phase, loopErr)
	}

	p.observer.OnStepComplete(ctx, st)
	p.hub.Emit(ctx, event.New(event.TypeStepCompleted, event.LevelInfo, string(phase.Phase),
		fmt.Sprintf("step %d completed after %d iterations", stepNumber, st.Iterations),
		map[string]string{"agent_run_id": ar.ID}))

	if _, err := p.store.AggregateSteps(ctx, ar.ID); err != nil {
		slog.Error("aggregate steps", "agent_run_id", ar.ID, "error", err)
	}
	return nil
}

// iterate runs the tool loop for one step, accumulating usage on st.
func (p *Pipeline) iterate(ctx context.Context, prov provider.Provider, phase PhasePlan, st *agentrun.Step, projectRoot string) error {
	phaseBudget := p.budgetFor(phase.Phase)
	messages := []provider.Message{{Role: provider.RoleUser, Content: phase.Prompt}}

	var lastFingerprint string
	stallCount := 0

	for iter := 1; iter <= p.cfg.MaxIterations; iter++ {
		st.Iterations = iter

		resp, err := prov.Chat(ctx, provider.ChatRequest{
			Model:        phase.Model,
			SystemPrompt: phase.SystemPrompt,
			Messages:     messages,
			Tools:        p.tools.Specs(),
		})
		if err != nil {
			return fmt.Errorf("provider call: %w", err)
		}

		st.Usage = st.Usage.Add(agentrun.Usage{
			InputTokens:         resp.Usage.InputTokens,
			OutputTokens:        resp.Usage.OutputTokens,
			CacheReadTokens:     resp.Usage.CacheReadTokens,
			CacheCreationTokens: resp.Usage.CacheCreationTokens,
		})

		// Budget verdict after every call. Warnings repeat on purpose so
		// downstream consumers see spend climbing.
		check := phaseBudget.Evaluate(st.Usage.InputTokens)
		switch check.Status {
		case budget.StatusExceeded:
			p.hub.Emit(ctx, event.New(event.TypeBudgetWarning, event.LevelError, string(phase.Phase),
				fmt.Sprintf("token budget exceeded: %d of %d input tokens", check.Used, check.Limit),
				map[string]string{"agent_run_id": st.AgentRunID}))
			return fmt.Errorf("%d of %d input tokens used: %w", check.Used, check.Limit, domain.ErrBudget)
		case budget.StatusWarning:
			p.hub.Emit(ctx, event.New(event.TypeBudgetWarning, event.LevelWarn, string(phase.Phase),
				fmt.Sprintf("token budget at %.0f%%: %d of %d input tokens", check.PercentUsed, check.Used, check.Limit),
				map[string]string{"agent_run_id": st.AgentRunID}))
		}

		fp := fingerprint(resp)
		if fp == lastFingerprint {
			stallCount++
			if stallCount >= p.cfg.StallThreshold {
				return ErrStalled
			}
		} else {
			lastFingerprint = fp
			stallCount = 0
		}

		switch resp.StopReason {
		case provider.StopEndTurn:
			return nil
		case provider.StopMaxTok:
			return fmt.Errorf("response truncated at max tokens")
		case provider.StopToolUse:
			// The assistant turn keeps its tool calls; replaying it without
			// them makes the follow-up tool results orphans on the wire.
			messages = append(messages, provider.Message{
				Role:      provider.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			for _, call := range resp.ToolCalls {
				messages = append(messages, p.dispatch(ctx, call, projectRoot, phase.Phase))
			}
		default:
			return fmt.Errorf("unknown stop reason %q", resp.StopReason)
		}
	}

	return fmt.Errorf("no stop after %d iterations", p.cfg.MaxIterations)
}

// dispatch executes one tool call and renders the result message. Tool
// failures, sandbox rejections included, go back to the model as tool
// results so it can self-correct; they never abort the step.
func (p *Pipeline) dispatch(ctx context.Context, call provider.ToolCall, projectRoot string, phase agentrun.Phase) provider.Message {
	p.hub.Emit(ctx, event.New(event.TypeToolCall, event.LevelInfo, string(phase),
		fmt.Sprintf("tool %s", call.Name), map[string]string{"tool": call.Name}))

	tool, ok := p.tools.Get(call.Name)
	if !ok {
		return toolResult(call.ID, fmt.Sprintf("error: unknown tool %q", call.Name))
	}

	out, err := tool.Execute(ctx, call.Arguments, projectRoot)
	if err != nil {
		return toolResult(call.ID, "error: "+err.Error())
	}
	return toolResult(call.ID, out)
}

func toolResult(callID, content string) provider.Message {
	return provider.Message{Role: provider.RoleTool, ToolCallID: callID, Content: content}
}

func (p *Pipeline) budgetFor(phase agentrun.Phase) budget.Budget {
	switch phase {
	case agentrun.PhasePlan:
		return p.cfg.Budgets.Plan
	case agentrun.PhaseSpec:
		return p.cfg.Budgets.Spec
	case agentrun.PhaseFix:
		return p.cfg.Budgets.Fix
	case agentrun.PhaseExecute:
		return p.cfg.Budgets.Execute
	default:
		return budget.Budget{}
	}
}

// fingerprint hashes a response's observable behavior for stall detection.
func fingerprint(resp *provider.ChatResponse) string {
	h := sha256.New()
	h.Write([]byte(resp.Content))
	for _, call := range resp.ToolCalls {
		h.Write([]byte(call.Name))
		if data, err := json.Marshal(call.Arguments); err == nil {
			h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Pipeline) publishStep(ctx context.Context, st *agentrun.Step) {
	if p.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.StepPayload{
		AgentRunID:  st.AgentRunID,
		StepNumber:  st.StepNumber,
		Phase:       string(st.Phase),
		Status:      string(st.Status),
		InputTokens: st.Usage.InputTokens,
		CostUSD:     st.CostUSD,
	})
	if err != nil {
		return
	}
	if err := p.queue.Publish(ctx, messagequeue.SubjectStepComplete, data); err != nil {
		slog.Warn("publish step message", "step", st.StepNumber, "error", err)
	}
}
