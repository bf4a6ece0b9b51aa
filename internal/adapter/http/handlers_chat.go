package http

import (
	"net/http"

	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/service"
)

// Handlers holds the services the HTTP routes dispatch to.
type Handlers struct {
	Gateway      *service.Gateway
	Registry     *service.Registry
	Health       *service.HealthService
	Agents       http.Handler
	MaxBodyBytes int64
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.CompletionRequest](w, r, h.MaxBodyBytes)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, err, "invalid request")
		return
	}

	if req.Stream {
		// Stream logs its own failures; the response is already committed.
		_ = h.Gateway.Stream(r.Context(), &req, newSSEWriter(w))
		return
	}

	resp, err := h.Gateway.Complete(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err, "completion failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type modelList struct {
	Data []backend.ModelInfo `json:"data"`
}

// ListModels handles GET /v1/models.
func (h *Handlers) ListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelList{Data: h.Registry.Models()})
}
