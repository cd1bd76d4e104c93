// Package apperr defines the error taxonomy shared by every layer of the
// reservation engine.  Each failure carries a Kind so that handlers can map
// it onto an HTTP status without inspecting messages, and so that callers
// can branch with errors.Is against the exported sentinels.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindInvalidRange        Kind = "invalid_range"
	KindInvalidStaging      Kind = "invalid_staging"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindResourceNotFound    Kind = "resource_not_found"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindConflict            Kind = "conflict"
	KindInvalidTransition   Kind = "invalid_transition"
	KindNoOpTransition      Kind = "noop_transition"
	KindSignatureMismatch   Kind = "signature_mismatch"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamError       Kind = "upstream_error"
	KindInternal            Kind = "internal"
)

// Error is the concrete error type returned by the core.  Details carries
// structured diagnostics (for example the ids of conflicting reservations).
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so sentinels such as ErrConflict
// compare equal to every conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the kind onto the status code used by the HTTP surface.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidRange, KindInvalidStaging, KindSignatureMismatch:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindResourceNotFound:
		return http.StatusNotFound
	case KindConflict, KindResourceUnavailable, KindInvalidTransition, KindNoOpTransition:
		return http.StatusConflict
	case KindUpstreamError:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation error"}
	ErrInvalidRange        = &Error{Kind: KindInvalidRange, Message: "end must be after start"}
	ErrInvalidStaging      = &Error{Kind: KindInvalidStaging, Message: "invalid checkout staging"}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Message: "unauthenticated"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrResourceNotFound    = &Error{Kind: KindResourceNotFound, Message: "resource not found"}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable, Message: "resource unavailable"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrNoOpTransition      = &Error{Kind: KindNoOpTransition, Message: "reservation already has that status"}
	ErrSignatureMismatch   = &Error{Kind: KindSignatureMismatch, Message: "payment signature mismatch"}
	ErrUpstreamTimeout     = &Error{Kind: KindUpstreamTimeout, Message: "upstream timeout"}
	ErrUpstreamError       = &Error{Kind: KindUpstreamError, Message: "upstream error"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "internal error"}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// From converts any error into an *Error.  Errors that already carry a kind
// are returned as-is; context deadlines become upstream timeouts and
// everything else is internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindUpstreamTimeout, err, "operation timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(KindUpstreamTimeout, err, "request cancelled")
	}
	return Wrap(KindInternal, err, "internal error")
}

// KindOf reports the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	return From(err).Kind
}
