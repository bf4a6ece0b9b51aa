package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Strob0t/modelgate/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	cfg := config.Logging{Level: "info", Service: "file-svc", File: path, Async: true}

	l, closer := New(cfg)
	l.Info("relay finished", "deltas", 3)
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"relay finished"`) {
		t.Errorf("expected message in log file, got %q", line)
	}
	if !strings.Contains(line, `"service":"file-svc"`) {
		t.Errorf("expected service attr in log file, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}

	// Set and retrieve
	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}
}

func TestContextHandlerAddsRequestID(t *testing.T) {
	inner := &recordingHandler{}
	l := slog.New(contextHandler{inner})

	l.InfoContext(WithRequestID(context.Background(), "req-9"), "chat completion")
	l.Info("no context")

	inner.mu.Lock()
	defer inner.mu.Unlock()
	if len(inner.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(inner.records))
	}
	var got string
	inner.records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "request_id" {
			got = a.Value.String()
		}
		return true
	})
	if got != "req-9" {
		t.Errorf("expected request_id req-9, got %q", got)
	}
	if inner.records[1].NumAttrs() != 0 {
		t.Errorf("expected no attrs without request id, got %d", inner.records[1].NumAttrs())
	}
}
