package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	for name, want := range map[string]LogLevel{
		"debug": Debug,
		"INFO":  Info,
		"warn":  Warn,
		"Error": Error,
		"off":   Off,
	} {
		got, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := Parse("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLogger_LevelFilterAndNamed(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("pio", Info, "", true)
	l.SetOutput(&buf)

	l.Debug("hidden %d", 1)
	l.Named("fdtable").Warn("Alloc: table full")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug message should be filtered: %q", out)
	}
	if !strings.Contains(out, "[pio/fdtable] Alloc: table full") {
		t.Errorf("Expected named warning, got %q", out)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("pio", Debug, "", true)
	l.SetOutput(&buf)
	l.SetJSON(true)

	l.Error("Open: %s", "/dev/none")

	var entry logEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry.Level != "ERROR" || entry.Component != "pio" || entry.Message != "Open: /dev/none" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
}

func TestDiscard(t *testing.T) {
	var l *Logger
	l.Info("nil logger must not panic")
	Discard().Error("dropped")
}

func TestLogger_SharedLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger("pio", Warn, "", true)
	root.SetOutput(&buf)
	usart := root.Named("usart")

	usart.Info("Open: before")
	root.SetLevel(Debug)
	usart.Info("Open: after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "[pio/usart] Open: after") {
		t.Errorf("Level change did not reach the derived logger: %q", out)
	}
	if !usart.Enabled(Debug) {
		t.Error("Enabled(Debug) must hold after SetLevel(Debug)")
	}

	usart.SetLevel(Off)
	if root.Enabled(Fatal) {
		t.Error("Off must silence every level")
	}
}
