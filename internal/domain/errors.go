package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that was rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by storage when a uniqueness constraint was hit by a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrHistoryUnavailable is returned when the answer store cannot provide a complete history.
	ErrHistoryUnavailable = errors.New("answer history unavailable: no durable answer store configured")

	// ErrQuestionNotFound indicates the referenced question does not exist.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrUserNotFound indicates the referenced user is unknown to the identity provider.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
