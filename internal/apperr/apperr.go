// Package apperr holds the error taxonomy shared by the registry services.
//
// Services declare sentinel errors with New and return copies enriched with
// the offending value (WithValue) or the underlying cause (Wrap). Sentinels
// compare by Code, so errors.Is keeps working on enriched copies.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is a rejected request detected before touching the store.
	KindValidation
	// KindConflict is a natural key or state conflict.
	KindConflict
	KindNotFound
	// KindUnavailable means the store cannot serve the request right now.
	KindUnavailable
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a structured registry error.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Value   string
	Message string
	Err     error
}

// New declares a sentinel error.
func New(kind Kind, code, field, message string) *Error {
	return &Error{Kind: kind, Code: code, Field: field, Message: message}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Value != "" {
		msg = fmt.Sprintf("%s (%s=%q)", msg, e.Field, e.Value)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithValue returns a copy carrying the natural key or field value that
// caused the error.
func (e *Error) WithValue(v string) *Error {
	cp := *e
	cp.Value = v
	return &cp
}

// WithField returns a copy naming the offending field.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// Wrap returns a copy with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether any error in err's chain is of kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == k {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
