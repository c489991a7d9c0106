package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jwebster45206/gm-engine/internal/config"
)

func TestSetupWriter_Production(t *testing.T) {
	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithSessionID(log, "abc").Info("turn applied")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["session_id"] != "abc" {
		t.Errorf("session_id = %v", line["session_id"])
	}
	if line["msg"] != "turn applied" {
		t.Errorf("msg = %v", line["msg"])
	}
}

func TestSetupWriter_DevelopmentLevel(t *testing.T) {
	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("hidden")
	WithError(WithRequestID(log, "req-1"), errors.New("boom")).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line logged at warn level")
	}
	for _, want := range []string{"shown", "request_id=req-1", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
	if slog.Default() != log {
		t.Error("Setup did not install the default logger")
	}
}
