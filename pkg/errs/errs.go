// Package errs provides the error taxonomy shared across the runtime:
// a fixed set of Kinds with a typed *Error carrying one of them, in the
// style of the tool registry's own component-scoped error type.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the handling it requires, not by its Go type.
type Kind string

const (
	Validation   Kind = "VALIDATION"
	NotFound     Kind = "NOT_FOUND"
	Conflict     Kind = "CONFLICT"
	Unauthorized Kind = "UNAUTHORIZED"
	Timeout      Kind = "TIMEOUT"
	RateLimited  Kind = "RATE_LIMITED"
	Backend      Kind = "BACKEND"
	Provider     Kind = "PROVIDER"
	Capability   Kind = "CAPABILITY"
	Internal     Kind = "INTERNAL"
)

// Error is a typed error carrying a Kind, a component, and an optional cause.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s:%s] %s", e.Component, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, errs.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error around an existing error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithComponent returns a copy of e scoped to a named component, e.g. "SessionManager".
func (e *Error) WithComponent(component string) *Error {
	cp := *e
	cp.Component = component
	return &cp
}

// KindOf extracts the Kind from err if it (or something it wraps) is an *Error.
// Unwrapped errors are reported as Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
