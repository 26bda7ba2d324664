// Package errors defines AppError, the error value every flowkit package
// returns for conditions a caller may want to branch on. An AppError has a
// stable code, the HTTP status the admin API maps it to, and free-form
// details that are serialized with it.
package errors

import (
	"fmt"
	"maps"
	"strings"
)

// AppError is a coded flowkit error.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause records the wrapped error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails copies details onto e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithDetail sets one detail.
func (e *AppError) WithDetail(key string, value any) *AppError {
	return e.WithDetails(map[string]any{key: value})
}

// New builds an AppError whose status and retryability follow from code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: StatusFor(code),
		Retryable:  IsRetryableCode(code),
	}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// NotFound reports a missing resource. id may be empty.
func NotFound(resource, id string) *AppError {
	if id == "" {
		return Newf(ErrCodeNotFound, "%s not found", resource).WithDetail("resource", resource)
	}
	return Newf(ErrCodeNotFound, "%s %q not found", resource, id).
		WithDetails(map[string]any{"resource": resource, "id": id})
}

// Conflict reports an operation that is illegal in the resource's current state.
func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason)
}

// InvalidInput reports a bad request field.
func InvalidInput(field, reason string) *AppError {
	err := New(ErrCodeInvalidInput, "Invalid input: "+reason)
	if field != "" {
		err.WithDetail("field", field)
	}
	return err
}

// Validation reports struct validation failures as a single message.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// Timeout reports an operation that ran past its deadline.
func Timeout(operation string) *AppError {
	return Newf(ErrCodeTimeout, "%s timed out", operation).WithDetail("operation", operation)
}

// Unauthorized reports a request without usable credentials.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return New(ErrCodeUnauthorized, reason)
}

func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "Authentication token has expired.")
}

func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "Invalid authentication token.")
}

// Internal hides cause behind a generic message. The cause stays available
// through Unwrap for logging.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.").WithCause(cause)
}
