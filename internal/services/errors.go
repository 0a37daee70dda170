package services

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Error kinds. Handlers map each kind to an HTTP status; any error that is
// not an *Error is treated as internal.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// Error is a failure whose Message is safe to show to the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is match the kind sentinel.
func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// checkLength rejects values longer than their VARCHAR column. Postgres
// counts characters, not bytes.
func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return validationError("%s must be at most %d characters", field, limit)
	}
	return nil
}

func notFoundError(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func conflictError(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func unauthorizedError(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func forbiddenError(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}
