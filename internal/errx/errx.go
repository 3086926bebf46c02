// Package errx provides application error kinds shared by the store, the
// service and the HTTP layer. Backend-specific errors are wrapped into one of
// these kinds before they leave the persistence layer.
package errx

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller should react to it.
type Kind uint8

const (
	Unknown Kind = iota
	// NotFound: the addressed tweet does not exist.
	NotFound
	// Conflict: the store reported a duplicate identity.
	Conflict
	// Invalid: the input was rejected (blank fields, over-length text, unknown id on discard).
	Invalid
	// Unavailable: the backing store failed for reasons unrelated to the input.
	Unavailable
	Internal
)

var kindNames = [...]string{
	Unknown:     "Unknown",
	NotFound:    "NotFound",
	Conflict:    "Conflict",
	Invalid:     "Invalid",
	Unavailable: "Unavailable",
	Internal:    "Internal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Retryable reports whether the same request may succeed later.
func (k Kind) Retryable() bool {
	return k == Unavailable
}

// Error is an error tagged with the operation that produced it and a Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E tags err with op and kind. It returns nil for a nil err.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errorf builds a new error of the given kind from a format string.
func Errorf(op string, kind Kind, format string, args ...any) error {
	return E(op, kind, fmt.Errorf(format, args...))
}

// Wrap tags err with op and keeps the kind it already carries.
func Wrap(op string, err error) error {
	return E(op, KindOf(err), err)
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op
	case e.Op == "":
		return e.Err.Error()
	default:
		return e.Op + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	if e, ok := asError(err); ok {
		return e.Kind
	}
	return Unknown
}

// OpOf returns the op of the outermost *Error in the chain.
func OpOf(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
