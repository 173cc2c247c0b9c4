// Package domain contains the core business entities for Castellan.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken indicates another user already owns the email,
	// compared case-insensitively.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials indicates authentication failed. Missing user,
	// wrong password, and blocked account all collapse into this error so
	// callers cannot enumerate accounts or probe block status.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden indicates the caller may not act on the target resource.
	ErrForbidden = errors.New("access denied")

	// ErrInternal indicates an unexpected infrastructure failure.
	ErrInternal = errors.New("internal server error")
)

// ValidationError wraps ErrValidation with a field-level message.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap makes ValidationError match errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
