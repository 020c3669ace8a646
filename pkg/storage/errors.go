package storage

import (
	"errors"
	"fmt"
)

// Common errors returned by storage operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when attempting to use a closed backend.
	ErrClosed = errors.New("backend is closed")

	// ErrCorpusVersion is returned when a reference corpus declares an
	// unsupported schema version.
	ErrCorpusVersion = errors.New("unsupported corpus version")
)

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	ResourceType string // "session", "corpus", ...
	ResourceID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Is checks if the error matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidInputError wraps ErrInvalidInput with details.
type InvalidInputError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input for field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// Is checks if the error matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resourceType, resourceID string) error {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// NewInvalidInputError creates an InvalidInputError.
func NewInvalidInputError(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
