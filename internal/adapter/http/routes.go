package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all gateway routes on the given chi router.
// limit, when non-nil, guards the /v1 API only; health checks and the agent
// proxy stay unthrottled.
func MountRoutes(r chi.Router, h *Handlers, limit func(http.Handler) http.Handler) {
	r.Get("/health", h.Liveness)
	r.Get("/health/ready", h.Readiness)

	r.Route("/v1", func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Get("/models", h.ListModels)
		r.Post("/chat/completions", h.ChatCompletions)
	})

	if h.Agents != nil {
		r.Handle("/agents/{name}", h.Agents)
		r.Handle("/agents/{name}/*", h.Agents)
	}
}
