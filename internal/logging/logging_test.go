package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	if Level(InfoDefault) != zapcore.InfoLevel {
		t.Errorf("default level %v, should be info", Level(InfoDefault))
	}
	if Level(InfoSilent) != zapcore.ErrorLevel {
		t.Errorf("silent level %v, should be error", Level(InfoSilent))
	}
	if Level(InfoVerbose) != zapcore.DebugLevel {
		t.Errorf("verbose level %v, should be debug", Level(InfoVerbose))
	}
}

func TestNewWriterFiltersLevels(t *testing.T) {
	var b bytes.Buffer
	l := NewWriter(&b, InfoSilent, true)
	l.Info("hidden")
	l.Warn("hidden too")
	l.Error("shown")
	l.Sync()

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, should be 1: %q", len(lines), b.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "shown" {
		t.Errorf("msg %v, should be shown", entry["msg"])
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Errorf("OrNop(nil) returned nil")
	}
}
