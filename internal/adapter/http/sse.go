package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/service"
)

var (
	sseDataPrefix = []byte("data: ")
	sseDone       = []byte("data: [DONE]\n\n")
)

// sseWriter writes a normalized completion stream as Server-Sent Events.
// Headers are sent with the first frame, and every frame is flushed at once.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	buf     bytes.Buffer
	started bool
}

var _ service.Sink = (*sseWriter)(nil)

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// WriteDelta writes one data frame:
// data: {"choices":[{"delta":{"content":"..."},"index":0}]}
func (s *sseWriter) WriteDelta(c chat.StreamChunk) error {
	s.start()
	s.buf.Reset()
	s.buf.Write(sseDataPrefix)
	enc := json.NewEncoder(&s.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(chat.NewChunkPayload(c)); err != nil {
		return err
	}
	s.buf.WriteByte('\n')
	return s.write(s.buf.Bytes())
}

// WriteDone writes the end-of-stream sentinel.
func (s *sseWriter) WriteDone() error {
	s.start()
	return s.write(sseDone)
}

func (s *sseWriter) write(frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}
