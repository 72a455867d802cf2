package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller is authenticated but does
	// not own the resource.
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")

	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrPollClosed        = fmt.Errorf("%w: poll is closed", ErrConflict)
	ErrPollLocked        = fmt.Errorf("%w: poll already has votes", ErrConflict)
	ErrAlreadyFlagged    = fmt.Errorf("%w: listing already flagged by this user", ErrConflict)
)

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
