package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Validation runs
		r.Post("/runs", h.SubmitRun)
		r.Get("/runs/{id}", h.GetRun)
		r.Post("/runs/{id}/abort", h.AbortRun)
		r.Get("/runs/{id}/gates", h.ListGateResults)
		r.Get("/runs/{id}/report", h.GetRunReport)
		r.Get("/runs/{id}/events", h.ListRunEvents)
		r.Get("/runs/{id}/events/export", h.ExportRunEvents)

		// Runs (nested under projects)
		r.Get("/projects/{id}/runs", h.ListProjectRuns)

		// Agent pipeline runs
		r.Post("/agent-runs", h.StartPipeline)
		r.Get("/agent-runs/{id}", h.GetAgentRun)
		r.Get("/agent-runs/{id}/steps", h.ListAgentRunSteps)

		// Sandbox
		r.Post("/sandbox/check", h.CheckCommand)

		// LLM management (proxied to LiteLLM)
		r.Get("/llm/providers", h.ListLLMProviders)
		r.Get("/llm/health", h.LLMHealth)
	})
}
