package chat

import "time"

// ObjectCompletion is the object tag of a non-streaming completion.
const ObjectCompletion = "chat.completion"

// FinishStop is the only finish reason the gateway reports.
const FinishStop = "stop"

// CompletionResponse is the non-streaming reply.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion alternative. The gateway always returns exactly one.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// NewCompletionResponse wraps the full reply text of a backend.
func NewCompletionResponse(id, model, content string, created time.Time) *CompletionResponse {
	return &CompletionResponse{
		ID:      id,
		Object:  ObjectCompletion,
		Created: created.Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      Message{Role: RoleAssistant, Content: content},
			FinishReason: FinishStop,
		}},
	}
}

// ChunkPayload is the JSON carried by each outbound SSE data frame:
// {"choices":[{"delta":{"content":"..."},"index":0}]}.
type ChunkPayload struct {
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the single choice inside a ChunkPayload.
type ChunkChoice struct {
	Delta ChunkDelta `json:"delta"`
	Index int        `json:"index"`
}

// ChunkDelta holds the incremental content of a ChunkChoice.
type ChunkDelta struct {
	Content string `json:"content"`
}

// NewChunkPayload builds the outbound frame payload for one delta.
func NewChunkPayload(c StreamChunk) ChunkPayload {
	return ChunkPayload{Choices: []ChunkChoice{{Delta: ChunkDelta{Content: c.Delta}}}}
}
