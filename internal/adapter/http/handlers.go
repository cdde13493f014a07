package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatewright/gatewright/internal/adapter/litellm"
	"github.com/gatewright/gatewright/internal/adapter/otel"
	"github.com/gatewright/gatewright/internal/adapter/ws"
	"github.com/gatewright/gatewright/internal/domain/agentrun"
	"github.com/gatewright/gatewright/internal/domain/event"
	"github.com/gatewright/gatewright/internal/domain/gate"
	"github.com/gatewright/gatewright/internal/domain/run"
	"github.com/gatewright/gatewright/internal/port/database"
	"github.com/gatewright/gatewright/internal/port/provider"
	"github.com/gatewright/gatewright/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Runs      *service.Lifecycle
	Pipeline  *service.Pipeline
	Sandbox   *service.SandboxExec
	Store     database.Store
	Providers *provider.Registry
	LiteLLM   *litellm.Client
	Events    *service.EventLog
	Hub       *ws.Hub
}

// --- Run Endpoints ---

// SubmitRun handles POST /api/v1/runs
func (h *Handlers) SubmitRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[run.SubmitRequest](w, r)
	if !ok {
		return
	}
	if req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if req.ProjectRoot == "" {
		writeError(w, http.StatusBadRequest, "project_root is required")
		return
	}
	if req.DeclaredTestPath == "" {
		writeError(w, http.StatusBadRequest, "declared_test_path is required")
		return
	}

	ctx, span := otel.StartSubmitSpan(r.Context(), req.ProjectID)
	defer span.End()

	res, err := h.Runs.Submit(ctx, req)
	if err != nil {
		writeDomainError(w, err, "run submission failed")
		return
	}
	otel.AddRunID(span, res.ID)
	writeJSON(w, http.StatusCreated, res)
}

// GetRun handles GET /api/v1/runs/{id}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Runs.GetRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListProjectRuns handles GET /api/v1/projects/{id}/runs
func (h *Handlers) ListProjectRuns(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	runs, err := h.Runs.ListRuns(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	if runs == nil {
		runs = []run.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// AbortRun handles POST /api/v1/runs/{id}/abort
func (h *Handlers) AbortRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Runs.Abort(r.Context(), id); err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborting"})
}

// ListGateResults handles GET /api/v1/runs/{id}/gates
func (h *Handlers) ListGateResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.Runs.GateResults(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	if results == nil {
		results = []gate.GateResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// GetRunReport handles GET /api/v1/runs/{id}/report
// The rejection report is served as markdown so it can be pasted straight
// into the next LLM prompt.
func (h *Handlers) GetRunReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.Runs.GetRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	if res.Report == "" {
		writeError(w, http.StatusNotFound, "run has no report")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Report))
}

// --- Event Endpoints ---

// ListRunEvents handles GET /api/v1/runs/{id}/events
func (h *Handlers) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events := h.Events.EventsFor(id)
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ExportRunEvents handles GET /api/v1/runs/{id}/events/export?format=json|csv
func (h *Handlers) ExportRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events := h.Events.EventsFor(id)

	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="events-`+id+`.csv"`)
		if err := event.ExportCSV(w, events); err != nil {
			writeInternalError(w, err)
		}
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if err := event.ExportJSON(w, events); err != nil {
			writeInternalError(w, err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported format: "+format)
	}
}

// --- Agent Pipeline Endpoints ---

type phaseRequest struct {
	Phase        string `json:"phase"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Prompt       string `json:"prompt"`
}

type pipelineRequest struct {
	RunID       string         `json:"run_id,omitempty"`
	ProjectRoot string         `json:"project_root"`
	Phases      []phaseRequest `json:"phases"`
}

func validPhase(p string) bool {
	switch agentrun.Phase(p) {
	case agentrun.PhasePlan, agentrun.PhaseSpec, agentrun.PhaseFix, agentrun.PhaseExecute:
		return true
	}
	return false
}

// StartPipeline handles POST /api/v1/agent-runs
// Execution is synchronous; the response carries the finished agent run,
// including a failed one. Step progress streams over the WebSocket hub
// while the request is in flight.
func (h *Handlers) StartPipeline(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pipelineRequest](w, r)
	if !ok {
		return
	}
	if req.ProjectRoot == "" {
		writeError(w, http.StatusBadRequest, "project_root is required")
		return
	}
	if len(req.Phases) == 0 {
		writeError(w, http.StatusBadRequest, "at least one phase is required")
		return
	}

	phases := make([]service.PhasePlan, 0, len(req.Phases))
	for _, p := range req.Phases {
		if !validPhase(p.Phase) {
			writeError(w, http.StatusBadRequest, "unknown phase: "+p.Phase)
			return
		}
		if p.Provider == "" || p.Model == "" {
			writeError(w, http.StatusBadRequest, "provider and model are required for every phase")
			return
		}
		if p.Prompt == "" {
			writeError(w, http.StatusBadRequest, "prompt is required for every phase")
			return
		}
		phases = append(phases, service.PhasePlan{
			Phase:        agentrun.Phase(p.Phase),
			Provider:     p.Provider,
			Model:        p.Model,
			SystemPrompt: p.SystemPrompt,
			Prompt:       p.Prompt,
		})
	}

	ctx, span := otel.StartPipelineSpan(r.Context(), req.RunID)
	defer span.End()

	ar, err := h.Pipeline.Execute(ctx, req.RunID, req.ProjectRoot, phases)
	if ar == nil {
		writeDomainError(w, err, "pipeline execution failed")
		return
	}
	// A failed run is still a result the caller needs to inspect.
	writeJSON(w, http.StatusCreated, ar)
}

// GetAgentRun handles GET /api/v1/agent-runs/{id}
func (h *Handlers) GetAgentRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ar, err := h.Store.GetAgentRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent run not found")
		return
	}
	writeJSON(w, http.StatusOK, ar)
}

// ListAgentRunSteps handles GET /api/v1/agent-runs/{id}/steps
func (h *Handlers) ListAgentRunSteps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	steps, err := h.Store.ListSteps(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent run not found")
		return
	}
	if steps == nil {
		steps = []agentrun.Step{}
	}
	writeJSON(w, http.StatusOK, steps)
}

// --- Sandbox Endpoints ---

// CheckCommand handles POST /api/v1/sandbox/check
// It returns the verdict without executing anything, so callers can
// pre-validate a command the model is about to request.
func (h *Handlers) CheckCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Command string `json:"command"`
	}](w, r)
	if !ok {
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	writeJSON(w, http.StatusOK, h.Sandbox.Check(r.Context(), req.Command))
}

// --- LLM Endpoints ---

// ListLLMProviders handles GET /api/v1/llm/providers
func (h *Handlers) ListLLMProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"providers": h.Providers.Available(),
	})
}

// LLMHealth handles GET /api/v1/llm/health
func (h *Handlers) LLMHealth(w http.ResponseWriter, r *http.Request) {
	healthy, err := h.LiteLLM.Health(r.Context())
	status := "healthy"
	if !healthy || err != nil {
		status = "unhealthy"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"ws_connections": h.Hub.ConnectionCount(),
	})
}
