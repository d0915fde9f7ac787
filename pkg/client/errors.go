package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("file not found")

	// ErrWrongCredentials is returned when the token retry is still rejected.
	ErrWrongCredentials = errors.New("wrong credentials, please retry with proper ones")

	// ErrPasswordRequired is returned when a username was given but the password prompt was dismissed.
	ErrPasswordRequired = errors.New("you should provide a basic auth password if username is provided")

	// ErrTokenRequired is returned when the token prompt was dismissed.
	ErrTokenRequired = errors.New("you should provide a JWT token or your basic auth credentials were incorrect")

	// ErrNoServerURL is returned when no server URL is configured.
	ErrNoServerURL = errors.New("cannot get information without a proper Kestra URL")
)

// NotFoundError reports a 404 from the files or flows API.
type NotFoundError struct {
	Target string
}

func (e *NotFoundError) Error() string {
	if e.Target == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotFound, e.Target)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StatusError is returned for any non-success status the caller did not ask to ignore.
type StatusError struct {
	Code    int
	Status  string
	Message string // server-provided message, if any
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d %s", e.Code, e.Status)
}

// ValidationError carries a server validation message verbatim (e.g. invalid flow YAML).
type ValidationError struct {
	Code    int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TransportError wraps a network-level failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsStatus checks if an error is a StatusError and returns it.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsValidation checks if an error is a ValidationError and returns it.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validation turns a client-side (4xx) StatusError that carries a server
// message into a ValidationError. Other errors are returned unchanged.
func Validation(err error) error {
	se, ok := AsStatus(err)
	if !ok || se.Message == "" {
		return err
	}
	if se.Code < http.StatusBadRequest || se.Code >= http.StatusInternalServerError {
		return err
	}
	return &ValidationError{Code: se.Code, Message: se.Message}
}

// IsAuthFailure reports whether err ended a credential recovery cycle.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrWrongCredentials) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrTokenRequired)
}
