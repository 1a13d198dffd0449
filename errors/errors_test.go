package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAppError(t *testing.T) {
	err := InvalidInput("test.op", nil, "bad input")

	if err.Code != http.StatusBadRequest {
		t.Errorf("expected code %d, got %d", http.StatusBadRequest, err.Code)
	}
	if err.Error() != "bad input" {
		t.Errorf("expected error string 'bad input', got '%s'", err.Error())
	}
}

func TestAppErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Internal("test.op", cause, "something broke")

	expected := "something broke: underlying failure"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		invalid    bool
		conflict   bool
	}{
		{
			name:     "not found",
			err:      NotFound("op", nil, "missing"),
			notFound: true,
		},
		{
			name:    "invalid input",
			err:     InvalidInput("op", nil, "bad"),
			invalid: true,
		},
		{
			name:     "invalid state",
			err:      InvalidState("op", nil, "running"),
			conflict: true,
		},
		{
			name:     "duplicate write",
			err:      Conflict("op", nil, "exists"),
			conflict: true,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("outer: %w", NotFound("op", nil, "missing")),
			notFound: true,
		},
		{
			name: "standard error",
			err:  fmt.Errorf("plain"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsInvalidInput(tt.err); got != tt.invalid {
				t.Errorf("IsInvalidInput() = %v, want %v", got, tt.invalid)
			}
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict() = %v, want %v", got, tt.conflict)
			}
		})
	}
}
