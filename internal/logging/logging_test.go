package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q): expected %s, got %s", input, want, got)
		}
	}
}

func TestLogger_CountsSuppressedWarnings(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "error")

	l.Info("hidden")
	l.Warn("counted but hidden", "kind", "duplicate key")
	l.With("component", "tree").Warn("counted through With")
	l.Error("shown")

	if got := l.Warnings(); got != 3 {
		t.Errorf("Expected 3 warnings, got %d", got)
	}
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected records below error to be dropped, got %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("Expected error record in output, got %q", out)
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Debug("details", "line", 3)
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "line=3") {
		t.Errorf("Expected debug record, got %q", buf.String())
	}
	if l.Warnings() != 0 {
		t.Errorf("Expected no warnings, got %d", l.Warnings())
	}
}
