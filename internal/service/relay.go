package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Strob0t/modelgate/internal/domain"
	"github.com/Strob0t/modelgate/internal/domain/chat"
	"github.com/Strob0t/modelgate/internal/port/upstream"
)

const (
	readBufferSize = 16 << 10
	// maxLineBytes bounds one backend line. Longer lines are discarded up
	// to the next newline and counted as malformed.
	maxLineBytes = 64 * readBufferSize
)

// Sink receives a normalized completion stream. The HTTP adapter implements
// it as Server-Sent Events; Complete implements it as a text buffer.
type Sink interface {
	// WriteDelta delivers one delta. An error means the consumer is gone.
	WriteDelta(chat.StreamChunk) error
	// WriteDone delivers the end-of-stream sentinel. Called exactly once.
	WriteDone() error
}

// decodeFunc extracts a frame from one backend line.
type decodeFunc func(line []byte) (upstream.Frame, error)

// relay reads body line by line until the backend ends the stream, handing
// every non-empty delta to emit in arrival order. A trailing line without a
// newline is still decoded at EOF. Malformed lines, including lines longer
// than maxLineBytes, go to onMalformed and are otherwise ignored. It returns
// the number of deltas emitted.
//
// relay never writes the end-of-stream sentinel; callers own that.
func relay(body io.Reader, decode decodeFunc, emit func(chat.StreamChunk) error, onMalformed func(error)) (int, error) {
	br := bufio.NewReaderSize(body, readBufferSize)
	n := 0
	for {
		line, tooLong, readErr := readLine(br)
		if tooLong {
			onMalformed(fmt.Errorf("%w: line exceeds %d bytes", domain.ErrMalformedFrame, maxLineBytes))
		} else if len(line) > 0 {
			frame, err := decode(line)
			switch {
			case errors.Is(err, domain.ErrMalformedFrame):
				onMalformed(err)
			case err != nil:
				return n, err
			default:
				if frame.Delta != "" {
					if err := emit(chat.StreamChunk{Delta: frame.Delta}); err != nil {
						return n, fmt.Errorf("%w: %w", domain.ErrClientDisconnected, err)
					}
					n++
				}
				if frame.Done {
					return n, nil
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("read upstream: %w", readErr)
		}
	}
}

// readLine returns the next line including its newline. A line longer than
// maxLineBytes is consumed but not kept, and tooLong is set.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		frag, readErr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > maxLineBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if !errors.Is(readErr, bufio.ErrBufferFull) {
			return line, tooLong, readErr
		}
	}
}

// idleTimeoutReader re-arms timer after every read that returned data, so
// the timer only fires once the backend has been silent for d.
type idleTimeoutReader struct {
	r     io.Reader
	timer *time.Timer
	d     time.Duration
}

func (t *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.timer.Reset(t.d)
	}
	return n, err
}

// textSink accumulates deltas for non-streaming completions.
type textSink struct {
	buf []byte
}

func (s *textSink) WriteDelta(c chat.StreamChunk) error {
	s.buf = append(s.buf, c.Delta...)
	return nil
}

func (s *textSink) WriteDone() error { return nil }

func (s *textSink) String() string { return string(s.buf) }
