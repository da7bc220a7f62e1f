package store

import (
	"fmt"
	"testing"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		code            RetCode
		notFound        bool
		invalidArgument bool
		internal        bool
	}{
		{"nil", nil, RetCSuccess, false, false, false},
		{"not found", NotFound("no value found"), RetCNotFound, true, false, false},
		{"invalid argument", InvalidArgument("not a set"), RetCInvalidArgument, false, true, false},
		{"internal", Internal("no response got"), RetCInternalError, false, false, true},
		{"wrapped", fmt.Errorf("rpc: %w", NotFound("no set found")), RetCNotFound, true, false, false},
		{"foreign error", fmt.Errorf("boom"), RetCInternalError, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.code {
				t.Errorf("CodeOf() = %v, want %v", got, tt.code)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsInvalidArgument(tt.err); got != tt.invalidArgument {
				t.Errorf("IsInvalidArgument() = %v, want %v", got, tt.invalidArgument)
			}
			if got := IsInternal(tt.err); got != tt.internal {
				t.Errorf("IsInternal() = %v, want %v", got, tt.internal)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := InvalidArgument("lower > upper")
	if got, want := err.Error(), "InvalidArgument: lower > upper"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
