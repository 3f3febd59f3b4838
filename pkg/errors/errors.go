package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones with custom
// messages still match their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Workflow error taxonomy. Business-rule violations are always returned as one
// of these values; infrastructure failures are wrapped as ErrInternal.
var (
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrNotAuthorized     = New("NOT_AUTHORIZED", http.StatusForbidden, "actor is not allowed to perform this action")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "invalid state transition")
	ErrAlreadySubmitted  = New("ALREADY_SUBMITTED", http.StatusConflict, "submission already submitted")
	ErrNotSubmitted      = New("NOT_SUBMITTED", http.StatusConflict, "submission has not been submitted")
	ErrAttemptNotActive  = New("ATTEMPT_NOT_ACTIVE", http.StatusConflict, "exam attempt is not in progress")
	ErrDeadlineExceeded  = New("DEADLINE_EXCEEDED", http.StatusConflict, "deadline exceeded")
	ErrNotYetExpired     = New("NOT_YET_EXPIRED", http.StatusConflict, "exam attempt has not expired yet")
	ErrDuplicateRequest  = New("DUPLICATE_REQUEST", http.StatusConflict, "an active enrollment request already exists")
	ErrAttemptExists     = New("ATTEMPT_EXISTS", http.StatusConflict, "an attempt already exists for this exam")
	ErrExamNotOpen       = New("EXAM_NOT_OPEN", http.StatusConflict, "exam window is not open")
	ErrMarksOutOfRange   = New("MARKS_OUT_OF_RANGE", http.StatusUnprocessableEntity, "marks out of range")
	ErrInvalidCode       = New("INVALID_CODE", http.StatusBadRequest, "invalid class code")
	ErrVersionConflict   = New("VERSION_CONFLICT", http.StatusConflict, "entity was modified concurrently")

	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an infrastructure failure with a caller supplied message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
