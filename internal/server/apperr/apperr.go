// Package apperr defines the error taxonomy surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an error that carries the HTTP status and the client-facing message
type Error struct {
	Err     error
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches an underlying cause that is logged but never sent to the client
func (e *Error) Wrap(err error) *Error {
	return &Error{Status: e.Status, Message: e.Message, Err: err}
}

// New creates an error with an explicit status
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Unauthorized: missing, invalid or expired credential
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden: authenticated but lacking a required role
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// BadRequest: malformed input or a missing cookie/header
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// NotFound: referenced entity is absent
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Conflict: unique constraint violated
func Conflict(message string) *Error { return New(http.StatusConflict, message) }

// Internal: unexpected failure; message is generic
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

// As extracts an *Error from err. Any other error is reported as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
