package workitem

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error at the operation boundary. Callers branch on the
// kind rather than on error text.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindPersistence       Kind = "persistence"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindValidation:        ErrValidation,
	KindInvalidTransition: ErrInvalidTransition,
	KindConflict:          ErrConflict,
	KindPersistence:       ErrPersistence,
}

// Error is the typed error returned by tracker operations.
type Error struct {
	Kind  Kind
	Op    string // operation, e.g. "transition item"
	Field string // offending field for validation errors
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else if s, ok := sentinels[e.Kind]; ok {
		b.WriteString(s.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind carried by err, or "" for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return ""
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a KindValidation error for field.
func Invalid(op, field, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Msg: msg}
}

// InvalidTransitionf builds a KindInvalidTransition error.
func InvalidTransitionf(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure. Typed errors pass through untouched.
func Persistence(op string, err error) error {
	if KindOf(err) != "" {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
