// Package apperr defines the error kinds shared by the ledger services and
// the HTTP layer. Domain errors wrap one of the sentinels so callers can
// classify them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Unauthorized reports that the caller lacks the role or capability for an action.
func Unauthorized(format string, args ...any) error {
	return newf(ErrUnauthorized, format, args...)
}

// NotFound reports that a referenced completion, chore, kid or row is absent.
func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, format, args...)
}

// InvalidState reports an action attempted from a state that disallows it.
func InvalidState(format string, args ...any) error {
	return newf(ErrInvalidState, format, args...)
}

// Validation reports malformed input.
func Validation(format string, args ...any) error {
	return newf(ErrValidation, format, args...)
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) error {
	return newf(ErrConflict, format, args...)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text surfaced to API callers. Unclassified errors are
// internal and are not exposed.
func Message(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
