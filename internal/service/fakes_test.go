package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/agentrun"
	"github.com/gatewright/gatewright/internal/domain/gate"
	"github.com/gatewright/gatewright/internal/domain/run"
	"github.com/gatewright/gatewright/internal/port/messagequeue"
	"github.com/gatewright/gatewright/internal/port/provider"
)

// fakeStore is an in-memory database.Store for service tests.
type fakeStore struct {
	mu          sync.Mutex
	runs        map[string]*run.Run
	gateResults map[string][]gate.GateResult
	agentRuns   map[string]*agentrun.AgentRun
	steps       map[string][]agentrun.Step

	pathUpdates   []string
	statusUpdates []run.Status
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:        make(map[string]*run.Run),
		gateResults: make(map[string][]gate.GateResult),
		agentRuns:   make(map[string]*agentrun.AgentRun),
		steps:       make(map[string][]agentrun.Step),
	}
}

func (f *fakeStore) CreateRun(_ context.Context, r *run.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[r.ID]; ok {
		return domain.ErrConflict
	}
	cp := *r
	f.runs[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRunsByProject(_ context.Context, projectID string) ([]run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []run.Run
	for _, r := range f.runs {
		if r.ProjectID == projectID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRunStatus(_ context.Context, id string, status run.Status, currentGate int, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Version != version {
		return domain.ErrConflict
	}
	if !r.Status.CanTransition(status) && r.Status != status {
		return fmt.Errorf("illegal transition %s -> %s: %w", r.Status, status, domain.ErrConflict)
	}
	r.Status = status
	r.CurrentGate = currentGate
	r.Version++
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeStore) UpdateRunPath(_ context.Context, id string, canonicalPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.CanonicalTestPath = canonicalPath
	f.pathUpdates = append(f.pathUpdates, canonicalPath)
	return nil
}

func (f *fakeStore) CompleteRun(_ context.Context, id string, status run.Status, report, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.Report = report
	r.Error = errMsg
	r.Version++
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeStore) SaveGateResult(_ context.Context, runID string, gr *gate.GateResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateResults[runID] = append(f.gateResults[runID], *gr)
	return nil
}

func (f *fakeStore) ListGateResults(_ context.Context, runID string) ([]gate.GateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gate.GateResult(nil), f.gateResults[runID]...), nil
}

func (f *fakeStore) CreateAgentRun(_ context.Context, ar *agentrun.AgentRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ar
	f.agentRuns[ar.ID] = &cp
	return nil
}

func (f *fakeStore) GetAgentRun(_ context.Context, id string) (*agentrun.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ar, ok := f.agentRuns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ar
	return &cp, nil
}

func (f *fakeStore) CompleteAgentRun(_ context.Context, id string, status agentrun.Status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ar, ok := f.agentRuns[id]
	if !ok {
		return domain.ErrNotFound
	}
	ar.Status = status
	ar.Error = errMsg
	return nil
}

func (f *fakeStore) CreateStep(_ context.Context, st *agentrun.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[st.AgentRunID] = append(f.steps[st.AgentRunID], *st)
	return nil
}

func (f *fakeStore) CompleteStep(_ context.Context, st *agentrun.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.steps[st.AgentRunID]
	for i := range steps {
		if steps[i].StepNumber == st.StepNumber {
			steps[i] = *st
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) ListSteps(_ context.Context, agentRunID string) ([]agentrun.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agentrun.Step(nil), f.steps[agentRunID]...), nil
}

func (f *fakeStore) AggregateSteps(_ context.Context, agentRunID string) (*agentrun.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ar, ok := f.agentRuns[agentRunID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ar.Recompute(f.steps[agentRunID])
	cp := *ar
	return &cp, nil
}

// fakeQueue records published messages and never fails.
type fakeQueue struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{subject, data})
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Drain() error { return nil }
func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i, m := range q.published {
		out[i] = m.subject
	}
	return out
}

// scriptedProvider replays a fixed sequence of chat responses.
type scriptedProvider struct {
	name      string
	responses []*provider.ChatResponse
	errs      []error
	calls     int
	requests  []provider.ChatRequest
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	i := p.calls
	p.calls++
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return &provider.ChatResponse{Content: "done", StopReason: provider.StopEndTurn}, nil
	}
	return p.responses[i], nil
}
