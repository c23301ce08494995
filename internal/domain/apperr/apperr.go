// Package apperr defines the error kinds every service reports and that the
// transport layer maps to status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidState       = errors.New("invalid state")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpired            = errors.New("expired")
	ErrExternalService    = errors.New("external service")
	ErrPersistence        = errors.New("persistence")
	ErrNotImplemented     = errors.New("not implemented")
)

// Error pairs a kind with a client-safe message. The optional cause is kept
// for logs and errors.Is checks; it never appears in Error().
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) error {
	return New(ErrValidation, format, args...)
}

func Persistence(cause error, format string, args ...any) error {
	return Wrap(ErrPersistence, cause, format, args...)
}

// Message returns the client-safe message of err. Errors that are not *Error
// carry internal detail and collapse to a generic text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Cause returns the underlying cause of err, or err itself.
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Cause != nil {
		return e.Cause
	}
	return err
}
