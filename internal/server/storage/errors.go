package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that an opaque token did not match any record
	// (unknown, already consumed or expired)
	ErrTokenNotFound = errors.New("token not found")

	// ErrMailNotFound indicates that tracked mail was not found
	ErrMailNotFound = errors.New("tracked mail not found")
)
