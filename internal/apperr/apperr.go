// Package apperr defines the tagged error variants the service produces and
// the HTTP boundary maps to the wire envelope. Every failure surfaced to a
// client is one of these kinds; anything else is treated as Internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates error variants.
type Kind int

const (
	// KindInternal covers unexpected I/O and persistence failures.
	KindInternal Kind = iota
	// KindValidation covers malformed, missing, or out-of-pattern input.
	KindValidation
	// KindAuth covers missing, invalid, or expired credentials.
	KindAuth
	// KindNotFound covers references to records or files that do not exist.
	KindNotFound
)

// FieldError names one offending field of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a tagged application error.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field detail for KindValidation.
	Fields []FieldError
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a validation error naming a single offending field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// Validationf builds a validation error with a formatted message.
func Validationf(field, format string, args ...any) *Error {
	return Validation(field, fmt.Sprintf(format, args...))
}

// Auth builds an authentication error.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// NotFound builds a not-found error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// From returns err as an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred", Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
