// Package backend describes the upstream services a model can be routed to.
package backend

import "strings"

// Kind distinguishes the local inference runtime from specialized agents.
type Kind string

const (
	KindLocal Kind = "local-inference"
	KindAgent Kind = "agent"
)

// Protocol is the streaming wire format a backend speaks.
type Protocol string

const (
	// ProtocolNDJSONGenerate is newline-delimited JSON with a "response"
	// field per line; the stream ends when the connection closes.
	ProtocolNDJSONGenerate Protocol = "ndjson-generate"
	// ProtocolSSEChat is Server-Sent Events carrying OpenAI-style deltas,
	// terminated by "data: [DONE]".
	ProtocolSSEChat Protocol = "sse-chat"
)

// Descriptor identifies where and how to reach a backend. Descriptors are
// built once at startup and never mutated.
type Descriptor struct {
	Name     string // "ollama" or the agent name
	Kind     Kind
	Address  string // base URL for local inference, host:port for agents
	Protocol Protocol
	Model    string // model id forwarded upstream
}

// BaseURL returns Address as an absolute URL without a trailing slash.
// Bare host:port addresses are assumed to be plain HTTP.
func (d Descriptor) BaseURL() string {
	addr := strings.TrimRight(d.Address, "/")
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}

// WithModel returns a copy of d that forwards the given model id.
func (d Descriptor) WithModel(model string) Descriptor {
	d.Model = model
	return d
}

// ModelType tags a listed model for selection UIs.
type ModelType string

const (
	TypeLocal ModelType = "local"
	TypeCloud ModelType = "cloud"
)

// ModelInfo is one entry of GET /v1/models.
type ModelInfo struct {
	ID       string    `json:"id"`
	Provider string    `json:"provider"`
	Type     ModelType `json:"type"`
}
