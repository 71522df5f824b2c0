package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) error = nil")
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "info", FormatJSON)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "agent_id", "a1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not a single JSON line: %q", buf.String())
	}
	if entry["msg"] != "shown" || entry["agent_id"] != "a1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "debug", FormatConsole)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("starting", "agent_id", "a1")
	if !strings.Contains(buf.String(), "starting") || !strings.Contains(buf.String(), "a1") {
		t.Errorf("console output = %q", buf.String())
	}

	if _, err := New(&buf, "info", "xml"); err == nil {
		t.Error("New(xml) error = nil")
	}
}
