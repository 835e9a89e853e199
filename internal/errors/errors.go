package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Quire error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"      // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrTooLarge       ErrorCode = "TOO_LARGE"       // 413
	ErrUnsupported    ErrorCode = "UNSUPPORTED"     // 415
	ErrFormat         ErrorCode = "FORMAT"          // 422
	ErrEmptyResult    ErrorCode = "EMPTY_RESULT"    // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrResource       ErrorCode = "RESOURCE"        // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// QuireError represents a structured error with code, status, and details.
type QuireError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *QuireError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *QuireError) Unwrap() error {
	return e.cause
}

// NewValidation creates a 400 error for malformed or empty input specs
// (e.g. a page range that selects nothing).
func NewValidation(msg string) *QuireError {
	return &QuireError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QuireError {
	return &QuireError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing row, item, or job.
func NewNotFound(what, identifier string) *QuireError {
	return &QuireError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *QuireError {
	return &QuireError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewTooLarge creates a 413 error when an upload exceeds the configured limit.
func NewTooLarge(max int64) *QuireError {
	return &QuireError{
		Code:    ErrTooLarge,
		Status:  413,
		Message: fmt.Sprintf("upload exceeds maximum size of %d bytes", max),
		Details: map[string]any{"max_bytes": max},
	}
}

// NewTooManyRows creates a 413 error when a tabular result would exceed the
// sheet row limit.
func NewTooManyRows(rows, limit int) *QuireError {
	return &QuireError{
		Code:    ErrTooLarge,
		Status:  413,
		Message: fmt.Sprintf("result would have %d rows, limit is %d", rows, limit),
		Details: map[string]any{"rows": rows, "max_rows": limit},
	}
}

// NewUnsupported creates a 415 error for inputs a transform cannot handle.
func NewUnsupported(name, kind string) *QuireError {
	return &QuireError{
		Code:    ErrUnsupported,
		Status:  415,
		Message: fmt.Sprintf("unsupported input %q for %s", name, kind),
		Details: map[string]any{"name": name, "kind": kind},
	}
}

// NewFormat creates a 422 error for content that could not be parsed into the
// expected tabular or document shape.
func NewFormat(msg string, cause error) *QuireError {
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &QuireError{
		Code:    ErrFormat,
		Status:  422,
		Message: msg,
		cause:   cause,
	}
}

// NewEmptyResult creates a 422 error when a batch produced no usable output.
func NewEmptyResult(inputs int) *QuireError {
	return &QuireError{
		Code:    ErrEmptyResult,
		Status:  422,
		Message: "no valid inputs produced output",
		Details: map[string]any{"inputs": inputs},
	}
}

// NewCancelled creates a 499 error when the caller went away mid-operation.
func NewCancelled(operation string) *QuireError {
	return &QuireError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewResource creates a 500 error for filesystem or archive I/O failures.
func NewResource(msg string, cause error) *QuireError {
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &QuireError{
		Code:    ErrResource,
		Status:  500,
		Message: msg,
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *QuireError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &QuireError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the QuireError in err's chain, if any.
func As(err error) (*QuireError, bool) {
	var qErr *QuireError
	if stderrors.As(err, &qErr) {
		return qErr, true
	}
	return nil, false
}

// Is checks if an error (or anything it wraps) is a QuireError with the given code.
func Is(err error, code ErrorCode) bool {
	if qErr, ok := As(err); ok {
		return qErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP-style status for err, 500 for foreign errors.
func StatusOf(err error) int {
	if qErr, ok := As(err); ok {
		return qErr.Status
	}
	return 500
}
