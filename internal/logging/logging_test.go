package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"servicehealth/internal/types"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAdapterWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Adapt(New(&buf, "info", "dispatcher")).With("tracking_id", "ABC-123")

	logger.Info("dispatched", "channels", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "dispatched" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "dispatcher" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["tracking_id"] != "ABC-123" {
		t.Errorf("tracking_id = %v", entry["tracking_id"])
	}
	if entry["channels"] != float64(2) {
		t.Errorf("channels = %v", entry["channels"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Adapt(New(&buf, "error", ""))

	logger.Info("hidden")
	logger.Warn("hidden too")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info/warn should be filtered at error level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("error should be logged: %s", buf.String())
	}
}

func TestSlogUnwrap(t *testing.T) {
	base := New(&bytes.Buffer{}, "info", "")
	if Slog(Adapt(base)) != base {
		t.Error("Slog should return the wrapped logger")
	}
	if Slog(types.NopLogger{}) == nil {
		t.Error("Slog should return a discard logger for other implementations")
	}
}
