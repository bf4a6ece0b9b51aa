package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/Strob0t/modelgate/internal/adapter/http"
	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/middleware"
)

// newRouter assembles the middleware chain and routes. limit may be nil.
func newRouter(cfg *config.Config, h *cfhttp.Handlers, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.RequestID)
	// Forwarding headers are only honoured behind a trusted proxy.
	if cfg.Server.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))

	cfhttp.MountRoutes(r, h, limit)
	return r
}
