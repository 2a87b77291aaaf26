package errors

import (
	"errors"
	"fmt"
)

// Common error kinds shared by the services and the HTTP layer
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")

	// Token errors
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")

	// Resource errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("forbidden")

	// ErrUserNotFound narrows ErrNotFound when more than one id could be missing
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// Input errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrRegistrationFailed = errors.New("registration failed")
)

// Reason is the machine readable cause of a ValidationError
type Reason string

const (
	ReasonInvalidInput  Reason = "InvalidInput"
	ReasonAlreadyExists Reason = "AlreadyExists"
)

// Message renders the reason the way clients expect to read it
func (r Reason) Message() string {
	switch r {
	case ReasonAlreadyExists:
		return "Already Exists"
	default:
		return "Invalid Input"
	}
}

// ValidationError reports a single client-correctable problem with one field.
type ValidationError struct {
	Field  string
	Reason Reason
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason.Message())
}

// Unwrap lets errors.Is match the validation error against the matching sentinel.
func (e *ValidationError) Unwrap() error {
	if e.Reason == ReasonAlreadyExists {
		return ErrAlreadyExists
	}
	return ErrInvalidInput
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field string, reason Reason) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
