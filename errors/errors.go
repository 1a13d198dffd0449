package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error type surfaced synchronously to callers of the
// core operations. Code doubles as the HTTP status the transport layer
// should map it to.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func E(op string, err error, message string, code int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// InvalidInput covers the validation taxonomy: bad URLs, disallowed
// file types, malformed request bodies. No job record is produced.
func InvalidInput(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusBadRequest)
}

func NotFound(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusNotFound)
}

// InvalidState marks operations disallowed in the entity's current
// state, e.g. deleting a running job or an illegal status transition.
func InvalidState(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusConflict)
}

// Conflict marks duplicate writes, e.g. a second transcript for a job.
func Conflict(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusConflict)
}

func Internal(op string, err error, message string) *AppError {
	return E(op, err, message, http.StatusInternalServerError)
}

func codeOf(err error) (int, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusNotFound
}

func IsInvalidInput(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusBadRequest
}

// IsConflict reports both invalid-state and duplicate-write errors.
func IsConflict(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusConflict
}
