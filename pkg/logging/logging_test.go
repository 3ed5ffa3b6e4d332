package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestInitFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Debug("Test", "should be filtered")
	Info("Test", "should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug entry leaked through info filter: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("info entry missing from output: %q", out)
	}
	if !strings.Contains(out, "subsystem=Test") {
		t.Errorf("subsystem attribute missing from output: %q", out)
	}
}

func TestErrorIncludesErrAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Test", errors.New("boom"), "operation failed")

	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Errorf("error attribute missing from output: %q", out)
	}
}

func TestTruncateSessionID(t *testing.T) {
	if got := TruncateSessionID("short"); got != "short" {
		t.Errorf("short IDs should pass through, got %q", got)
	}
	got := TruncateSessionID("0123456789abcdef")
	if got != "01234567..." {
		t.Errorf("TruncateSessionID = %q, want %q", got, "01234567...")
	}
}
