// Package ollama implements the upstream port for the Ollama generate API,
// which streams newline-delimited JSON objects.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Strob0t/modelgate/internal/domain"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/port/upstream"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateFrame is one line of the /api/generate stream.
type generateFrame struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

// Client talks to an Ollama server.
type Client struct {
	httpClient *http.Client
}

var _ upstream.Client = (*Client)(nil)

// NewClient creates an Ollama client on top of a shared HTTP client.
func NewClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Prompt flattens a conversation into the single prompt /api/generate takes:
// message contents joined by newlines.
func Prompt(messages []chat.Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// Open starts a streaming generation.
func (c *Client) Open(ctx context.Context, d backend.Descriptor, messages []chat.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(GenerateRequest{
		Model:  d.Model,
		Prompt: Prompt(messages),
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL()+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %w", domain.ErrBackendUnreachable, err)
	}
	if resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: ollama status %d: %s", domain.ErrBackendUnreachable, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return resp.Body, nil
}

// Decode parses one NDJSON line. Lines without a "response" field are
// control frames; a "done": true line ends the stream.
func (c *Client) Decode(line []byte) (upstream.Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return upstream.Frame{}, nil
	}

	var f generateFrame
	if err := json.Unmarshal(line, &f); err != nil {
		return upstream.Frame{}, fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}
	if f.Error != "" {
		return upstream.Frame{}, fmt.Errorf("%w: ollama: %s", upstream.ErrStreamAborted, f.Error)
	}

	var frame upstream.Frame
	if f.Response != nil {
		frame.Delta = *f.Response
	}
	frame.Done = f.Done
	return frame, nil
}

// Probe lists the installed models to confirm the server is up.
func (c *Client) Probe(ctx context.Context, d backend.Descriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL()+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: %w", domain.ErrBackendUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: ollama status %d", domain.ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}
