// Package agent implements the upstream port for specialized agent services,
// which expose POST /chat and stream OpenAI-style Server-Sent Events.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Strob0t/modelgate/internal/domain"
	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/port/upstream"
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// chunk is the JSON payload of one SSE data line.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Client talks to agent services.
type Client struct {
	httpClient *http.Client
}

var _ upstream.Client = (*Client)(nil)

// NewClient creates an agent client on top of a shared HTTP client.
func NewClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Open starts a streaming chat against the agent at d.Address.
func (c *Client) Open(ctx context.Context, d backend.Descriptor, messages []chat.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(ChatRequest{
		Model:    d.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL()+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s: %w", domain.ErrBackendUnreachable, d.Name, err)
	}
	if resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: agent %s status %d: %s", domain.ErrBackendUnreachable, d.Name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return resp.Body, nil
}

// Decode parses one SSE line. Only "data:" lines carry content; comments,
// blank separators and other fields (event, id, retry) are control frames.
func (c *Client) Decode(line []byte) (upstream.Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' || !bytes.HasPrefix(line, dataPrefix) {
		return upstream.Frame{}, nil
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if bytes.Equal(payload, doneSentinel) {
		return upstream.Frame{Done: true}, nil
	}

	var ch chunk
	if err := json.Unmarshal(payload, &ch); err != nil {
		return upstream.Frame{}, fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}
	if len(ch.Choices) == 0 {
		return upstream.Frame{}, nil
	}
	return upstream.Frame{Delta: ch.Choices[0].Delta.Content}, nil
}

// Probe calls the agent's GET /health endpoint.
func (c *Client) Probe(ctx context.Context, d backend.Descriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL()+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: agent %s: %w", domain.ErrBackendUnreachable, d.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: agent %s status %d", domain.ErrBackendUnreachable, d.Name, resp.StatusCode)
	}
	return nil
}
