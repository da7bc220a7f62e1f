package internal

import (
	"errors"
	"testing"
)

// TestCommandTypeString tests the String method of all command types
func TestCommandTypeString(t *testing.T) {
	tests := []struct {
		ct       CommandType
		expected string
		write    bool
	}{
		{CommandTSet, "Set", true},
		{CommandTGet, "Get", false},
		{CommandTDSet, "DSet", true},
		{CommandTDGet, "DGet", false},
		{CommandTDHas, "DHas", false},
		{CommandTPush, "Push", true},
		{CommandTPop, "Pop", true},
		{CommandTQLen, "QLen", false},
		{CommandTSAdd, "SAdd", true},
		{CommandTSDel, "SDel", true},
		{CommandTSLen, "SLen", false},
		{CommandTDel, "Del", true},
		{CommandTRange, "Range", false},
		{CommandTInfo, "Info", false},
		{CommandType(200), "Unknown(200)", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.expected {
				t.Errorf("String() = %v, want %v", got, tt.expected)
			}
			if got := tt.ct.IsWrite(); got != tt.write {
				t.Errorf("IsWrite() = %v, want %v", got, tt.write)
			}
		})
	}
}

// TestNewCommand tests that every command gets its own reply channel of capacity 1
func TestNewCommand(t *testing.T) {
	a := NewCommand(CommandTGet)
	b := NewCommand(CommandTGet)

	if cap(a.Reply) != 1 {
		t.Errorf("reply capacity = %d, want 1", cap(a.Reply))
	}
	if a.Reply == b.Reply {
		t.Errorf("commands share a reply channel")
	}
}

// TestWithResult tests that delivering a result never blocks
func TestWithResult(t *testing.T) {
	cmd := NewCommand(CommandTSet)

	if !cmd.WithResult(Result{Count: 1}) {
		t.Fatalf("first result was not delivered")
	}
	if cmd.WithResult(Result{Err: errors.New("second")}) {
		t.Errorf("second result was delivered although the reply channel is full")
	}

	r := <-cmd.Reply
	if r.Count != 1 || r.Err != nil {
		t.Errorf("unexpected result %+v", r)
	}
}
