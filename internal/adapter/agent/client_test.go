package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/modelgate/internal/adapter/agent"
	"github.com/Strob0t/modelgate/internal/domain"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/port/upstream"
)

func descriptor(url string) backend.Descriptor {
	return backend.Descriptor{
		Name:     "codegen",
		Kind:     backend.KindAgent,
		Address:  strings.TrimPrefix(url, "http://"),
		Protocol: backend.ProtocolSSEChat,
		Model:    "gpt-4",
	}
}

func TestOpenSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Fatalf("unexpected accept header: %q", r.Header.Get("Accept"))
		}

		var req agent.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Model != "gpt-4" || !req.Stream {
			t.Fatalf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[1].Role != chat.RoleUser {
			t.Fatalf("messages not forwarded verbatim: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := agent.NewClient(srv.Client())
	body, err := client.Open(context.Background(), descriptor(srv.URL), []chat.Message{
		{Role: chat.RoleSystem, Content: "you write Go"},
		{Role: chat.RoleUser, Content: "a worker pool"},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = body.Close()
}

func TestOpenErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := agent.NewClient(srv.Client())
	_, err := client.Open(context.Background(), descriptor(srv.URL), []chat.Message{{Role: chat.RoleUser, Content: "x"}})
	if !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	client := agent.NewClient(http.DefaultClient)

	tests := []struct {
		name      string
		line      string
		want      upstream.Frame
		malformed bool
	}{
		{name: "delta", line: `data: {"choices":[{"delta":{"content":"x"}}]}`, want: upstream.Frame{Delta: "x"}},
		{name: "no space after colon", line: `data:{"choices":[{"delta":{"content":"y"},"index":0}]}`, want: upstream.Frame{Delta: "y"}},
		{name: "crlf", line: "data: {\"choices\":[{\"delta\":{\"content\":\"z\"}}]}\r", want: upstream.Frame{Delta: "z"}},
		{name: "done", line: "data: [DONE]", want: upstream.Frame{Done: true}},
		{name: "role-only delta", line: `data: {"choices":[{"delta":{"role":"assistant"}}]}`, want: upstream.Frame{}},
		{name: "no choices", line: `data: {"choices":[]}`, want: upstream.Frame{}},
		{name: "blank separator", line: "", want: upstream.Frame{}},
		{name: "comment", line: ": keep-alive", want: upstream.Frame{}},
		{name: "event field", line: "event: message", want: upstream.Frame{}},
		{name: "broken json", line: `data: {"choices":[{"delta"`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Decode([]byte(tt.line))
			if tt.malformed {
				if !errors.Is(err, domain.ErrMalformedFrame) {
					t.Fatalf("expected ErrMalformedFrame, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"healthy","agent":"code-generator"}`))
	}))
	defer srv.Close()

	client := agent.NewClient(srv.Client())
	if err := client.Probe(context.Background(), descriptor(srv.URL)); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
}
