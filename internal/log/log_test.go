package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" error ", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(LevelInfo)

	SetLevel(LevelError)
	Info("hidden message")
	Error("shown message", errors.New("boom"), "row", 3)

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info line written at error level: %q", out)
	}
	if !strings.Contains(out, "shown message") || !strings.Contains(out, "boom") {
		t.Errorf("error line missing: %q", out)
	}
	if !strings.Contains(out, "row=3") {
		t.Errorf("key/value pair missing: %q", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("debug message", "k", "v")
	if !strings.Contains(buf.String(), "debug message") {
		t.Errorf("debug line missing at debug level: %q", buf.String())
	}
}
