package otel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	cfotel "github.com/Strob0t/modelgate/internal/adapter/otel"
	"github.com/Strob0t/modelgate/internal/config"
)

func TestSetupNone(t *testing.T) {
	shutdown, err := cfotel.Setup(context.Background(), config.Telemetry{Exporter: "none"}, "modelgate-test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSetupUnknownExporter(t *testing.T) {
	if _, err := cfotel.Setup(context.Background(), config.Telemetry{Exporter: "zipkin"}, "modelgate-test"); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSetupStdoutToFile(t *testing.T) {
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	path := filepath.Join(t.TempDir(), "telemetry.log")
	shutdown, err := cfotel.Setup(context.Background(), config.Telemetry{Exporter: "stdout", File: path}, "modelgate-test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, span := cfotel.StartCompletionSpan(context.Background(), "gpt-4", "codegen", true)
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read telemetry file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected exported span in telemetry file")
	}
}

func TestNewMetrics(t *testing.T) {
	m, err := cfotel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.MalformedFrames.Add(context.Background(), 1)
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	h := cfotel.HTTPMiddleware("modelgate-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Error("expected wrapped writer to keep http.Flusher")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
