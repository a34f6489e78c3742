// Package apperror defines the domain errors shared by every layer.
//
// Repositories and services return these; only the handler package decides
// which HTTP status each one becomes. Callers test for a category with
// errors.Is against the sentinels below, never by comparing messages.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel categories. AppError.Unwrap returns one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrTooLarge      = errors.New("too large")
)

// AppError carries a category, a message that is safe to show to API
// clients, and optionally the request field that caused it.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that no record of the given kind has the given id.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a taken username or a
// video that is already in a playlist.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden reports an ownership policy rejection.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports missing or wrong credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// LimitExceeded reports a per-user quota rejection, such as the comment cap.
func LimitExceeded(message string) *AppError {
	return &AppError{
		Err:     ErrLimitExceeded,
		Message: message,
	}
}

// TooLarge reports a request body over its size limit.
func TooLarge(field, message string) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: message,
		Field:   field,
	}
}
