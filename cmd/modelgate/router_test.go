package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	cfhttp "github.com/Strob0t/modelgate/internal/adapter/http"
	"github.com/Strob0t/modelgate/internal/config"
	"github.com/Strob0t/modelgate/internal/middleware"
	"github.com/Strob0t/modelgate/internal/service"
)

func limitedRouter(trustProxy bool) http.Handler {
	cfg := config.Defaults()
	cfg.Server.TrustProxy = trustProxy
	reg := service.NewRegistry(cfg.Ollama, cfg.Agents)
	h := &cfhttp.Handlers{Registry: reg, MaxBodyBytes: cfg.Server.MaxBodyBytes}
	return newRouter(&cfg, h, middleware.NewRateLimiter(1, 1).Handler)
}

func listModels(h http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/v1/models", http.NoBody)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouterIgnoresForwardedForByDefault(t *testing.T) {
	h := limitedRouter(false)

	if code := listModels(h, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	// A different forged address still lands in the peer's bucket.
	if code := listModels(h, "10.0.0.2"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}
}

func TestRouterTrustsForwardedForWhenEnabled(t *testing.T) {
	h := limitedRouter(true)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		if code := listModels(h, ip); code != http.StatusOK {
			t.Fatalf("client %s: expected 200, got %d", ip, code)
		}
	}
}
