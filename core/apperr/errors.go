// Package apperr defines the error taxonomy shared by the request engine.
// Every dispatcher step funnels its failures into one of these kinds so the
// HTTP boundary can map them to a status code without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindInternal is any unclassified failure inside a hook, plugin
	// transform, or dispatcher step.
	KindInternal Kind = iota

	// KindMalformedInput is caller-supplied data that fails structural
	// parsing, such as invalid JSON in a filter.
	KindMalformedInput

	// KindAccessDenied is a before-operation hook vetoing the request.
	KindAccessDenied

	// KindPersistence is a failure in the underlying storage call.
	KindPersistence
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrAccessDenied is the sentinel returned by the dispatcher when a
// before-operation hook returns false. It is a normal negative outcome,
// not an exception raised by hook code.
var ErrAccessDenied = &Error{Kind: KindAccessDenied, Err: errors.New("access denied")}

// Malformed wraps err as malformed caller input.
func Malformed(format string, args ...any) error {
	return &Error{Kind: KindMalformedInput, Err: fmt.Errorf(format, args...)}
}

// Persistence wraps a storage failure.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPersistence, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the boundary should write.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindMalformedInput:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
