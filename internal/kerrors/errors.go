// Package kerrors provides a structured error type used across the kernel's
// subsystems, mapping failures to a small set of high-level kinds.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a kernel error into one of a small set of recoverable
// or fatal conditions that callers can branch on.
type Kind string

const (
	KindOutOfMemory    Kind = "out of memory"
	KindInvalidAddress Kind = "invalid address"
	KindInvalidRequest Kind = "invalid request"
	KindMailboxFull    Kind = "mailbox full"
	KindFDTInvalid     Kind = "fdt invalid"
)

// Error is a structured kernel error with enough context to log and to
// branch on programmatically via IsKind/errors.Is.
type Error struct {
	Op     string // subsystem operation that failed, e.g. "memengine.Reserve"
	Kind   Kind
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("aether: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("aether: %s", msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is(err, &Error{Kind: KindOutOfMemory}) match by Kind alone.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// New creates a structured error for the given subsystem operation.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap attaches subsystem context to an existing error, preserving its kind
// if it is already a *Error.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var e *Error
	if errors.As(inner, &e) {
		return &Error{Op: op, Kind: e.Kind, Msg: e.Msg, Inner: inner}
	}
	return &Error{Op: op, Kind: KindInvalidRequest, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is a *Error (anywhere in its chain) of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
