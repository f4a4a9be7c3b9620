// Package apperr defines the error categories surfaced by the service layer.
//
// Callers switch on the Kind to decide how to render a failure: a validation
// error points at malformed input, a conflict explains which lifecycle rule
// blocked the operation, and a concurrency error asks the caller to reload
// and retry.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindConcurrency:
		return "concurrency"
	default:
		return "internal"
	}
}

// Error is a categorized service error.
type Error struct {
	Kind    Kind
	Field   string // set for validation errors on a single input field
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing entity.
func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// Validation reports malformed input on field.
func Validation(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports an operation that violates a lifecycle rule.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Concurrency reports a lost optimistic-lock race.
func Concurrency(err error, format string, args ...any) error {
	return &Error{Kind: KindConcurrency, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsConflict(err error) bool    { return KindOf(err) == KindConflict }
func IsConcurrency(err error) bool { return KindOf(err) == KindConcurrency }

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
