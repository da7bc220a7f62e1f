package util

import (
	"github.com/ValentinKolb/memDB/lib/db"
	"github.com/spf13/viper"
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}
	if got := WrapString("short text"); got != "short text" {
		t.Errorf("WrapString() = %q, want %q", got, "short text")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"42", "42"},
		{"true", "true"},
		{`"quoted"`, `"quoted"`},
		{"plain", `"plain"`},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		// protojson output may contain random whitespace
		if got := strings.ReplaceAll(FormatValue(ParseValue(tt.arg)), " ", ""); got != tt.want {
			t.Errorf("FormatValue(ParseValue(%q)) = %s, want %s", tt.arg, got, tt.want)
		}
	}
}

func TestParseBound(t *testing.T) {
	if b := ParseBound("", false); b.Kind != db.BoundUnbounded {
		t.Errorf("empty key should be unbounded, got %v", b.Kind)
	}
	if b := ParseBound("a", false); b.Kind != db.BoundIncluded || string(b.Key) != "a" {
		t.Errorf("unexpected bound %v", b)
	}
	if b := ParseBound("a", true); b.Kind != db.BoundExcluded {
		t.Errorf("exclusive flag should exclude the key, got %v", b.Kind)
	}
}

func TestFactories(t *testing.T) {
	defer viper.Reset()

	for _, name := range []string{"json", "gob", "binary", "proto"} {
		viper.Set("serializer", name)
		if _, err := GetSerializer(); err != nil {
			t.Errorf("GetSerializer(%s) failed: %v", name, err)
		}
	}
	viper.Set("serializer", "xml")
	if _, err := GetSerializer(); err == nil {
		t.Error("expected error for unknown serializer")
	}

	for _, name := range []string{"grpc", "http", "tcp", "unix"} {
		viper.Set("transport", name)
		if _, err := GetTransport(); err != nil {
			t.Errorf("GetTransport(%s) failed: %v", name, err)
		}
		if _, err := GetServerTransport(4096, 4); err != nil {
			t.Errorf("GetServerTransport(%s) failed: %v", name, err)
		}
	}
	viper.Set("transport", "carrier-pigeon")
	if _, err := GetTransport(); err == nil {
		t.Error("expected error for unknown transport")
	}
}
