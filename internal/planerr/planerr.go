// Package planerr defines the error kinds returned by the periodization engine.
// Every engine error is recoverable by the caller and names the offending
// field or state so it can be shown to the end user directly.
package planerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
)

// Error is a typed engine error.
type Error struct {
	Kind  Kind
	Msg   string
	Field string // validation: offending field path
	From  string // invalid transition: current status
	To    string // invalid transition: requested status
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		if e.Field != "" {
			return fmt.Sprintf("validation error: %s: %s", e.Field, e.Msg)
		}
		return "validation error: " + e.Msg
	case KindInvalidTransition:
		msg := fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
		if e.Msg != "" {
			msg += ": " + e.Msg
		}
		return msg
	default:
		if e.Msg == "" {
			return string(e.Kind)
		}
		return string(e.Kind) + ": " + e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A sentinel with
// no message matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation returns a validation error for field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransition returns a state machine violation naming both states.
func InvalidTransition(from, to, reason string) *Error {
	return &Error{Kind: KindInvalidTransition, From: from, To: to, Msg: reason}
}

// NotFound returns a not-found error for the given entity and id.
func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", entity, id)}
}

// Forbidden returns an access error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns an optimistic concurrency error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
