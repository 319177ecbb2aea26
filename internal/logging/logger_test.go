package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, FormatJSON)
	l.Step("Building").Info().Str("binary", "build/AscomAlpacaProxy.exe").Msg("Go build successful")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["step"] != "Building" {
		t.Errorf("Expected step=Building, got %v", entry["step"])
	}
	if entry["message"] != "Go build successful" {
		t.Errorf("Unexpected message %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected a timestamp")
	}
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, FormatConsole)
	l.Warn().Str("header", "src/config_manager.h").Msg("Firmware version not published")

	out := buf.String()
	if !strings.Contains(out, "Firmware version not published") || !strings.Contains(out, "src/config_manager.h") {
		t.Errorf("Unexpected console output %q", out)
	}
}

func TestGlobalLevel(t *testing.T) {
	defer SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := NewLogger(&buf, FormatJSON)

	l.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug output at info level: %q", buf.String())
	}

	SetGlobalLevel(zerolog.DebugLevel)
	l.Debug().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Debug output missing at debug level")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error().Msg("discarded")
	l.Step("Building").Info().Msg("discarded")
}
