// Package upstream defines the port interface for streaming backends.
package upstream

import (
	"context"
	"errors"
	"io"

	"github.com/Strob0t/modelgate/internal/domain/backend"
	"github.com/Strob0t/modelgate/internal/domain/chat"
)

// ErrStreamAborted is returned by Decode when the backend reports a failure
// inside an otherwise well-formed stream. The relay stops reading.
var ErrStreamAborted = errors.New("backend aborted the stream")

// Frame is the decoded content of one stream line.
type Frame struct {
	Delta string // empty for control frames
	Done  bool   // backend signalled end of stream
}

// Client speaks one backend wire protocol.
type Client interface {
	// Open sends a completion request with streaming enabled and returns the
	// raw response body. Connection failures and non-2xx statuses wrap
	// domain.ErrBackendUnreachable.
	Open(ctx context.Context, d backend.Descriptor, messages []chat.Message) (io.ReadCloser, error)

	// Decode extracts the frame carried by one line of the body, without its
	// trailing newline. Undecodable lines wrap domain.ErrMalformedFrame.
	Decode(line []byte) (Frame, error)

	// Probe checks that the backend answers its health endpoint.
	Probe(ctx context.Context, d backend.Descriptor) error
}
