package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.Info("server started", "addr", ":3400")

	out := buf.String()
	if !strings.Contains(out, "server started") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "addr=:3400") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("server started", "addr", ":3400")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "server started" {
		t.Errorf("expected msg %q, got %v", "server started", entry["msg"])
	}
	if entry["addr"] != ":3400" {
		t.Errorf("expected addr %q, got %v", ":3400", entry["addr"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected sub-warn entries to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("expected warn entry in output, got %q", out)
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	t.Parallel()

	logger := NewNop()
	logger.Error("dropped")
}
