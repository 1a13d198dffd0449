package scripts

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FailureClass partitions tool failures by how the caller should react.
// Only Transient failures are worth retrying; the rest will fail the
// same way every time.
type FailureClass string

const (
	FailureTransient         FailureClass = "transient"
	FailureResourceExhausted FailureClass = "resource_exhausted"
	FailureInvalidInput      FailureClass = "invalid_input"
	FailureCorrupt           FailureClass = "corrupt_media"
	FailureNoAudio           FailureClass = "no_audio"
)

type ProcessError struct {
	Op      string
	Class   FailureClass
	Message string
	Err     error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NewProcessError lets callers outside this package classify a failure
// explicitly, e.g. a missing input file that no retry can recover.
func NewProcessError(op string, class FailureClass, err error, message string) *ProcessError {
	return &ProcessError{Op: op, Class: class, Message: message, Err: err}
}

func newProcessError(op string, class FailureClass, err error, message string) *ProcessError {
	return NewProcessError(op, class, err, message)
}

// IsRetriable reports whether err describes a failure that may succeed
// on another attempt. Unclassified errors are treated as transient; a
// failure has to be provably permanent to skip the retry budget.
func IsRetriable(err error) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Class == FailureTransient
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func ClassOf(err error) FailureClass {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return FailureTransient
}

// classifyOutput maps tool stderr/stdout to a failure class. These
// patterns come from whisper, yt-dlp, and ffmpeg failure modes seen in
// production logs.
func classifyOutput(output string) FailureClass {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "out of memory"),
		strings.Contains(lower, "cuda error"),
		strings.Contains(lower, "cuda out of memory"),
		strings.Contains(lower, "cannot allocate memory"):
		return FailureResourceExhausted
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "moov atom not found"),
		strings.Contains(lower, "corrupt"):
		return FailureCorrupt
	case strings.Contains(lower, "does not contain any stream"),
		strings.Contains(lower, "no audio"),
		strings.Contains(lower, "output file is empty"):
		return FailureNoAudio
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"),
		strings.Contains(lower, "unable to extract video id"):
		return FailureInvalidInput
	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "temporar"),
		strings.Contains(lower, "http error 5"),
		strings.Contains(lower, "network"):
		return FailureTransient
	}
	return FailureTransient
}
