package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logger.LogLevel
		wantErr  bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"", logger.INFO, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("test", &buf)
	l.SetLevel(logger.WARNING)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below the level were logged: %s", out)
	}
	if !strings.Contains(out, "warn 3") || !strings.Contains(out, "error 4") {
		t.Errorf("expected warn and error messages, got: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected component field, got: %s", out)
	}
}
