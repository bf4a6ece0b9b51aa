package http

import "net/http"

// Liveness handles GET /health. It never probes backends.
func (h *Handlers) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Health.Liveness())
}

// Readiness handles GET /health/ready.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	rep := h.Health.Readiness(r.Context())
	status := http.StatusOK
	if !rep.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}
