// Package chat defines the OpenAI-compatible chat completion types the
// gateway accepts and produces.
package chat

import (
	"fmt"

	"github.com/Strob0t/modelgate/internal/domain"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRoles is the set of accepted message roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

// Message is one turn of the conversation forwarded to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of POST /v1/chat/completions.
// Fields outside this subset (temperature, max_tokens, ...) are ignored.
type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// Validate checks the request shape. Errors wrap domain.ErrInvalidRequest.
func (r *CompletionRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("%w: model is required", domain.ErrInvalidRequest)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages is required", domain.ErrInvalidRequest)
	}
	for i, m := range r.Messages {
		if !ValidRoles[m.Role] {
			return fmt.Errorf("%w: messages[%d]: invalid role %q: must be user, assistant, or system", domain.ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}

// StreamChunk is one incremental text fragment extracted from a backend stream.
type StreamChunk struct {
	Delta string
}
