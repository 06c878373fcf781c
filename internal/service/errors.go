package service

import (
	"errors"
	"fmt"
)

// ErrLineBusy is returned when a mutation is requested for a cart line
// that already has a request in flight. The view disables the control
// until the outstanding request resolves.
var ErrLineBusy = errors.New("another update for this item is in flight")

// ValidationError is a local, pre-flight failure. State is unchanged.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthError means the session is missing or invalid. Recoverable by
// re-authenticating; the view redirects to login.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return e.Msg }

// NetworkError wraps a transport-level failure. Retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx application response from the backend,
// carrying the server-provided message when one was present.
type ServerError struct {
	Status int
	Msg    string
}

func (e *ServerError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}
