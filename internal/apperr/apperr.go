// Package apperr is the error taxonomy shared by the pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation            Kind = "validation"
	Unauthenticated       Kind = "unauthenticated"
	Unauthorized          Kind = "unauthorized"
	Forbidden             Kind = "forbidden"
	NotFound              Kind = "not_found"
	Conflict              Kind = "conflict"
	GenerationUnavailable Kind = "generation_unavailable"
	EmptyGeneration       Kind = "empty_generation"
	MalformedGeneration   Kind = "malformed_generation"
	UnexpectedShape       Kind = "unexpected_shape"
	Persistence           Kind = "persistence"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Message != "":
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Status(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthenticated, Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the caller-safe message for err. Server-side failures collapse to a
// generic message; the detail stays in the logs.
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Server error."
	}
	switch e.Kind {
	case GenerationUnavailable, EmptyGeneration, MalformedGeneration, UnexpectedShape:
		return "Server error during generation."
	case Persistence, "":
		return "Server error."
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
