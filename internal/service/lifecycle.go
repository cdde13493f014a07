package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/event"
	"github.com/gatewright/gatewright/internal/domain/gate"
	"github.com/gatewright/gatewright/internal/domain/pathsafe"
	"github.com/gatewright/gatewright/internal/domain/run"
	"github.com/gatewright/gatewright/internal/logger"
	"github.com/gatewright/gatewright/internal/port/broadcast"
	"github.com/gatewright/gatewright/internal/port/database"
	"github.com/gatewright/gatewright/internal/port/messagequeue"
)

// Lifecycle drives validation runs from submission to a terminal state.
// Runs of the same project execute strictly one at a time in FIFO order;
// runs of different projects proceed independently.
type Lifecycle struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	engine  *GateEngine
	stager  *SpecStager
	metrics Metrics

	mu      sync.Mutex
	pending map[string][]pendingRun // projectID -> FIFO
	active  map[string]bool         // projectID -> worker running
	aborts  map[string]bool         // runID -> abort requested

	wg sync.WaitGroup
}

type pendingRun struct {
	runID       string
	projectRoot string
	manifest    string
}

// NewLifecycle wires a Lifecycle. hub and metrics may be nil.
func NewLifecycle(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, engine *GateEngine, stager *SpecStager, metrics Metrics) *Lifecycle {
	if hub == nil {
		hub = broadcast.Noop{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Lifecycle{
		store:   store,
		queue:   queue,
		hub:     hub,
		engine:  engine,
		stager:  stager,
		metrics: metrics,
		pending: make(map[string][]pendingRun),
		active:  make(map[string]bool),
		aborts:  make(map[string]bool),
	}
}

// Submit validates the request, canonicalizes the declared test path, and
// enqueues a new PENDING run. The path check happens before the run row
// exists so traversal attempts never create state.
func (l *Lifecycle) Submit(ctx context.Context, req run.SubmitRequest) (*run.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	canonical, err := pathsafe.Canonicalize(req.DeclaredTestPath, req.ProjectRoot)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &run.Run{
		ID:                uuid.NewString(),
		ProjectID:         req.ProjectID,
		Status:            run.StatusPending,
		DeclaredTestPath:  pathsafe.Normalize(req.DeclaredTestPath),
		CanonicalTestPath: canonical,
		DangerMode:        req.DangerMode,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.store.CreateRun(ctx, r); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	l.publish(ctx, messagequeue.SubjectRunSubmitted, r, 0, "")
	l.hub.Emit(ctx, event.New(event.TypeRunSubmitted, event.LevelInfo, "lifecycle",
		"run submitted", map[string]string{"run_id": r.ID, "project_id": r.ProjectID}))

	l.enqueue(pendingRun{runID: r.ID, projectRoot: req.ProjectRoot, manifest: req.ManifestPath}, r.ProjectID)
	return r, nil
}

// Abort requests termination of a run. PENDING runs abort immediately;
// RUNNING runs observe the flag at the next gate boundary. Aborting a
// terminal run is a conflict.
func (l *Lifecycle) Abort(ctx context.Context, runID string) error {
	r, err := l.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if r.Status.Terminal() {
		return fmt.Errorf("run %s already %s: %w", runID, r.Status, domain.ErrConflict)
	}

	l.mu.Lock()
	l.aborts[runID] = true
	l.mu.Unlock()

	if r.Status == run.StatusPending {
		if err := l.store.CompleteRun(ctx, runID, run.StatusAborted, "", "aborted before start"); err != nil {
			return err
		}
		r.Status = run.StatusAborted
		l.publish(ctx, messagequeue.SubjectRunComplete, r, r.CurrentGate, "aborted before start")
		l.hub.Emit(ctx, event.New(event.TypeRunAborted, event.LevelWarn, "lifecycle",
			"run aborted before start", map[string]string{"run_id": runID}))
	}

	logger.From(logger.WithRunID(ctx, runID)).Info("abort requested", "status", r.Status)
	return nil
}

// GetRun returns a run by id.
func (l *Lifecycle) GetRun(ctx context.Context, id string) (*run.Run, error) {
	return l.store.GetRun(ctx, id)
}

// ListRuns returns all runs of one project.
func (l *Lifecycle) ListRuns(ctx context.Context, projectID string) ([]run.Run, error) {
	return l.store.ListRunsByProject(ctx, projectID)
}

// GateResults returns the persisted gate results of a run.
func (l *Lifecycle) GateResults(ctx context.Context, runID string) ([]gate.GateResult, error) {
	return l.store.ListGateResults(ctx, runID)
}

// Wait blocks until all in-flight workers have drained. Used on shutdown
// and in tests.
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}

// enqueue appends the run to its project queue and starts a worker when
// none is active for that project.
func (l *Lifecycle) enqueue(p pendingRun, projectID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending[projectID] = append(l.pending[projectID], p)
	if !l.active[projectID] {
		l.active[projectID] = true
		l.wg.Add(1)
		go l.worker(projectID)
	}
}

// worker drains one project's queue sequentially.
func (l *Lifecycle) worker(projectID string) {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		queue := l.pending[projectID]
		if len(queue) == 0 {
			l.active[projectID] = false
			l.mu.Unlock()
			return
		}
		next := queue[0]
		l.pending[projectID] = queue[1:]
		l.mu.Unlock()

		l.execute(context.Background(), next)
	}
}

// execute runs the full gate pipeline for one dequeued run.
func (l *Lifecycle) execute(ctx context.Context, p pendingRun) {
	ctx = logger.WithRunID(ctx, p.runID)
	log := logger.From(ctx)

	r, err := l.store.GetRun(ctx, p.runID)
	if err != nil {
		log.Error("dequeued unknown run", "error", err)
		return
	}
	if r.Status.Terminal() {
		// Aborted while still queued; the flag must not outlive the run.
		l.mu.Lock()
		delete(l.aborts, r.ID)
		l.mu.Unlock()
		return
	}

	if l.isAborted(r.ID) {
		l.finish(ctx, r, run.StatusAborted, "", "aborted before start", nil)
		return
	}

	if err := l.store.UpdateRunStatus(ctx, r.ID, run.StatusRunning, 0, r.Version); err != nil {
		log.Error("start run", "error", err)
		return
	}
	r.Status = run.StatusRunning
	r.Version++

	l.metrics.RunStarted(ctx)
	l.publish(ctx, messagequeue.SubjectRunStarted, r, 0, "")
	l.hub.Emit(ctx, event.New(event.TypeRunStarted, event.LevelInfo, "lifecycle",
		"run started", map[string]string{"run_id": r.ID}))

	gc, err := l.prepare(ctx, r, p)
	if err != nil {
		l.finish(ctx, r, run.StatusFailed, "", err.Error(), nil)
		return
	}

	started := time.Now()
	res, err := l.engine.RunAll(ctx, gc, func() bool { return l.isAborted(r.ID) })

	for i := range res.GateResults {
		gr := res.GateResults[i]
		if serr := l.store.SaveGateResult(ctx, r.ID, &gr); serr != nil {
			log.Error("save gate result", "gate", gr.Gate, "error", serr)
		}
		l.metrics.GateCompleted(ctx, gr.Gate, gr.Passed, time.Since(started))
		l.publish(ctx, messagequeue.SubjectRunGate, r, gr.Gate, "")
	}

	switch {
	case errors.Is(err, context.Canceled):
		l.finish(ctx, r, run.StatusAborted, "", "aborted at gate boundary", res.GateResults)
	case err != nil:
		l.finish(ctx, r, run.StatusFailed, "", err.Error(), res.GateResults)
	case res.Passed:
		l.finish(ctx, r, run.StatusPassed, "", "", res.GateResults)
	default:
		report := gate.BuildRejectionReport(r.ID, string(run.StatusFailed), res.GateResults)
		l.finish(ctx, r, run.StatusFailed, report, "", res.GateResults)
	}
}

// prepare stages the spec file and builds the gate context.
func (l *Lifecycle) prepare(ctx context.Context, r *run.Run, p pendingRun) (*gate.Context, error) {
	manifestPath := p.manifest
	testPath := r.CanonicalTestPath

	if manifestPath != "" {
		m, err := ReadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		testPath, err = l.stager.EnsureSpecAtCorrectPath(ctx, r, p.projectRoot, m)
		if err != nil {
			return nil, err
		}
	}

	return &gate.Context{
		RunID:        r.ID,
		ProjectRoot:  p.projectRoot,
		TestPath:     testPath,
		ManifestPath: manifestPath,
		DangerMode:   r.DangerMode,
	}, nil
}

// finish moves the run to a terminal state and fans the outcome out.
func (l *Lifecycle) finish(ctx context.Context, r *run.Run, status run.Status, report, errMsg string, results []gate.GateResult) {
	log := logger.From(logger.WithRunID(ctx, r.ID))
	if err := l.store.CompleteRun(ctx, r.ID, status, report, errMsg); err != nil {
		log.Error("complete run", "error", err)
	}
	r.Status = status

	l.mu.Lock()
	delete(l.aborts, r.ID)
	l.mu.Unlock()

	l.metrics.RunCompleted(ctx, string(status))
	l.publish(ctx, messagequeue.SubjectRunComplete, r, len(results), errMsg)

	evType := event.TypeRunCompleted
	level := event.LevelInfo
	switch status {
	case run.StatusAborted:
		evType = event.TypeRunAborted
		level = event.LevelWarn
	case run.StatusFailed:
		level = event.LevelError
	}
	l.hub.Emit(ctx, event.New(evType, level, "lifecycle",
		fmt.Sprintf("run %s", status), map[string]string{"run_id": r.ID, "status": string(status)}))

	log.Info("run finished", "status", status, "gates", len(results))
}

func (l *Lifecycle) isAborted(runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aborts[runID]
}

// publish sends a lifecycle payload, logging but never propagating failures.
func (l *Lifecycle) publish(ctx context.Context, subject string, r *run.Run, gateNum int, errMsg string) {
	if l.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.RunStatusPayload{
		RunID:     r.ID,
		ProjectID: r.ProjectID,
		Status:    string(r.Status),
		Gate:      gateNum,
		Error:     errMsg,
	})
	if err != nil {
		return
	}
	if err := l.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish lifecycle message", "subject", subject, "run_id", r.ID, "error", err)
	}
}

// SubscribeAborts listens for external abort requests on the queue.
// The returned cancel function detaches the subscription.
func (l *Lifecycle) SubscribeAborts(ctx context.Context) (func(), error) {
	if l.queue == nil {
		return func() {}, nil
	}
	return l.queue.Subscribe(ctx, messagequeue.SubjectRunAbort, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.AbortPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("abort payload: %w", err)
		}
		return l.Abort(ctx, p.RunID)
	})
}
