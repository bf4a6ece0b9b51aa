// Package logger provides structured logging setup for modelgate.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Strob0t/modelgate/internal/config"
)

const (
	asyncBufferSize = 4096
	asyncWorkers    = 2
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout (and to a rotated file when cfg.File is set)
// with a "service" attribute on every record. The returned Closer flushes
// pending records and closes the file.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	var out io.Writer = os.Stdout
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBufferSize, asyncWorkers)
		handler = ah
		closer = ah
	}
	if file != nil {
		closer = fileCloser{inner: closer, file: file}
	}

	return slog.New(contextHandler{handler}).With("service", cfg.Service), closer
}

// fileCloser drains the inner closer before closing the log file.
type fileCloser struct {
	inner Closer
	file  io.Closer
}

func (c fileCloser) Close() {
	c.inner.Close()
	_ = c.file.Close()
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
