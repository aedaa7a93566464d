// Package logging builds the slog loggers used by the appledesc command.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ParseLevel maps debug/info/warn/error to a slog level. Unknown or empty
// input yields info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Logger is a text logger that also counts warnings.
type Logger struct {
	*slog.Logger
	counter *countingHandler
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *Logger {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	h := &countingHandler{handler: base, warnings: new(atomic.Int64)}
	return &Logger{Logger: slog.New(h), counter: h}
}

// Warnings returns how many records at warn level or above were handled,
// including ones below the output level.
func (l *Logger) Warnings() int64 {
	return l.counter.warnings.Load()
}

type countingHandler struct {
	handler  slog.Handler
	warnings *atomic.Int64
}

func (h *countingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || h.handler.Enabled(ctx, level)
}

func (h *countingHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn {
		h.warnings.Add(1)
	}
	if !h.handler.Enabled(ctx, record.Level) {
		return nil
	}
	return h.handler.Handle(ctx, record)
}

func (h *countingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &countingHandler{handler: h.handler.WithAttrs(attrs), warnings: h.warnings}
}

func (h *countingHandler) WithGroup(name string) slog.Handler {
	return &countingHandler{handler: h.handler.WithGroup(name), warnings: h.warnings}
}
