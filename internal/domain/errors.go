package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. NotFound and Validation are expected, recoverable-by-caller
// conditions; Generation means the narrative collaborator errored or returned
// an unparseable structure; anything else is internal.
var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("invalid input")
	ErrGeneration = errors.New("narrative generation failed")
)

// ValidationError reports a malformed input with the field that caused it,
// so the caller can correct the request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
