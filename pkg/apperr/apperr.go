// Package apperr defines the error taxonomy shared by the orchestrators and
// the HTTP handlers. Each error carries a Kind which determines the HTTP status
// code, a message that is safe to show to clients and an optional wrapped cause
// which is only ever logged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	// Internal is used for errors that were not classified.
	Internal Kind = iota
	Validation
	Authentication
	Conflict
	NotFound
	Upstream
	Persistence
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Upstream:
		return "upstream"
	case Persistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code used when an error of kind k reaches a
// handler. Duplicate registrations are reported as 400 rather than 409 to
// match the existing clients.
func (k Kind) Status() int {
	switch k {
	case Validation, Conflict:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type returned by the orchestrators.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Convenience constructors for the common kinds.

func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func Unauthenticated(message string) *Error { return New(Authentication, message) }

func Conflicting(message string) *Error { return New(Conflict, message) }

func Missing(message string) *Error { return New(NotFound, message) }

func UpstreamFailure(message string, err error) *Error { return Wrap(Upstream, message, err) }

func PersistenceFailure(message string, err error) *Error { return Wrap(Persistence, message, err) }

// KindOf reports the Kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// StatusCode maps any error to an HTTP status code.
func StatusCode(err error) int {
	return KindOf(err).Status()
}

// Message returns the client-facing message for err. Unclassified errors never
// leak their text and fall back to fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
