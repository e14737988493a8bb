// Package errs defines the error kinds shared by tensor, graph, and nn,
// as sentinel-wrapped errors so callers can use errors.Is/errors.As
// instead of matching on message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the error handling design.
type Kind string

const (
	ShapeMismatch    Kind = "ShapeMismatch"
	IndexOutOfRange  Kind = "IndexOutOfRange"
	ArithmeticError  Kind = "ArithmeticError"
	ArityError       Kind = "ArityError"
	NullInput        Kind = "NullInput"
	LazyInitFailure  Kind = "LazyInitFailure"
	NameCollision    Kind = "NameCollision"
	StateDictMismatch Kind = "StateDictMismatch"
	CacheOverflow    Kind = "CacheOverflow"
	Unsupported      Kind = "Unsupported"
)

// Error is a typed error tagged with one of the Kind sentinels above.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is the same Kind, so errors.Is(err, errs.New(k, "", "")) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error for the given kind, originating op, and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting for Msg.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
