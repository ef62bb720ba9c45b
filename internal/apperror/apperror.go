// Package apperror defines the error taxonomy shared by the sharebin client
// and the reference server.
//
// Every failure that crosses a package boundary is an *AppError wrapping one
// of the sentinels below. Callers branch with errors.Is on the sentinel and
// show AppError.Message to the user:
//
//	if errors.Is(err, apperror.ErrExpired) { ... }
//
// The server maps sentinels to HTTP status codes (handler.writeError); the
// client maps status codes back to sentinels (api.Client). Both directions
// live next to their transport so this package stays protocol-free.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	// ErrServer covers network failures and any server reply that does not
	// map onto a more specific sentinel.
	ErrServer = errors.New("server failure")
	// ErrStorage marks local persistent store failures. Callers on the
	// auto-save path swallow it.
	ErrStorage = errors.New("storage failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Expired reports a resource that existed but is no longer served.
// HTTP handlers map this to 410 Gone.
func Expired(resource, id string) *AppError {
	return &AppError{
		Err:     ErrExpired,
		Message: fmt.Sprintf("%s %s has expired", resource, id),
	}
}

// Unauthenticated reports a missing or invalid credential.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Server wraps a transport or server-side failure. cause may be nil when the
// server replied with a message but no underlying Go error exists.
func Server(message string, cause error) *AppError {
	err := ErrServer
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrServer, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// Storage wraps a local store failure.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, cause),
		Message: fmt.Sprintf("local storage %s failed", op),
	}
}

// MessageOf returns the human-readable message carried by err, falling back
// to err.Error() for errors that are not *AppError.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
