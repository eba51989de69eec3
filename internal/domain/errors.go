package domain

import "errors"

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternalError = errors.New("internal error")

	// ErrTransient marks storage contention (lock timeout, serialization failure, busy database).
	// Operations failing with it may be retried as a whole.
	ErrTransient = errors.New("transient storage conflict")
)
