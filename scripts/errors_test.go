package scripts

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestClassifyOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   FailureClass
	}{
		{"cuda oom", "RuntimeError: CUDA out of memory. Tried to allocate 2.00 GiB", FailureResourceExhausted},
		{"system oom", "fork: cannot allocate memory", FailureResourceExhausted},
		{"corrupt media", "[mov,mp4,m4a @ 0x55] Invalid data found when processing input", FailureCorrupt},
		{"truncated mp4", "moov atom not found", FailureCorrupt},
		{"no audio stream", "Output file does not contain any stream", FailureNoAudio},
		{"bad url", "ERROR: Unsupported URL: https://example.com/watch", FailureInvalidInput},
		{"network timeout", "ERROR: unable to download video data: timed out", FailureTransient},
		{"server error", "HTTP Error 503: Service Unavailable", FailureTransient},
		{"unknown", "something unexpected happened", FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOutput(tt.output); got != tt.want {
				t.Errorf("classifyOutput(%q) = %s, want %s", tt.output, got, tt.want)
			}
		})
	}
}

func TestIsRetriable(t *testing.T) {
	transient := newProcessError("op", FailureTransient, nil, "flaky network")
	if !IsRetriable(transient) {
		t.Error("transient failures must be retriable")
	}

	for _, class := range []FailureClass{FailureResourceExhausted, FailureInvalidInput, FailureCorrupt, FailureNoAudio} {
		err := newProcessError("op", class, nil, "fatal")
		if IsRetriable(err) {
			t.Errorf("%s must not be retriable", class)
		}
	}

	// Wrapped process errors keep their class.
	wrapped := errors.Wrap(newProcessError("op", FailureCorrupt, nil, "bad file"), "processing job")
	if IsRetriable(wrapped) {
		t.Error("wrapping must not change retriability")
	}
	if ClassOf(wrapped) != FailureCorrupt {
		t.Errorf("ClassOf(wrapped) = %s, want %s", ClassOf(wrapped), FailureCorrupt)
	}

	if !IsRetriable(context.DeadlineExceeded) {
		t.Error("a deadline cut-off is retriable")
	}
	if !IsRetriable(errors.New("unclassified failure")) {
		t.Error("unclassified failures default to retriable")
	}
	if IsRetriable(context.Canceled) {
		t.Error("cancellation is not a retriable failure")
	}
}
