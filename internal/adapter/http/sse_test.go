package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/modelgate/internal/domain/chat"
)

func TestSSEWriterFraming(t *testing.T) {
	w := httptest.NewRecorder()
	s := newSSEWriter(w)

	for _, d := range []string{"a", "<b>"} {
		if err := s.WriteDelta(chat.StreamChunk{Delta: d}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.WriteDone(); err != nil {
		t.Fatal(err)
	}

	want := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"},\"index\":0}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"<b>\"},\"index\":0}]}\n\n" +
		"data: [DONE]\n\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	if !w.Flushed {
		t.Error("expected frames to be flushed")
	}
	if got := w.Header().Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q", got)
	}
}

func TestSSEWriterDoneOnlyStream(t *testing.T) {
	w := httptest.NewRecorder()
	if err := newSSEWriter(w).WriteDone(); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || w.Body.String() != "data: [DONE]\n\n" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (b brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestSSEWriterReportsWriteFailure(t *testing.T) {
	s := newSSEWriter(brokenWriter{httptest.NewRecorder()})
	if err := s.WriteDelta(chat.StreamChunk{Delta: "a"}); err == nil {
		t.Fatal("expected write failure to surface")
	}
}
