// Package fault carries the error taxonomy shared by the write path and the
// HTTP adapter: a kind that decides transport mapping and a stable
// machine-readable code callers can branch on.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation covers malformed or missing input. Never retried.
	Validation Kind = iota
	// Conflict covers duplicate identity keys.
	Conflict
	// NotFound covers mutations that matched no primary record.
	NotFound
	// Unavailable covers derived-store failures that are surfaced.
	Unavailable
	// Internal covers primary-store failures. Always surfaced.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the taxonomy's concrete type. Code is stable and machine-readable;
// Err is the wrapped cause, if any.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string) error {
	return &Error{Kind: kind, Code: code}
}

func Wrap(kind Kind, code string, err error) error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// KindOf reports the kind of err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// CodeOf returns the stable code of err, or "" for untyped errors.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
