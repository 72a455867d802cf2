package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by Client matches exactly one of them
// with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("request failed")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Field   string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return kindFor(e.Status)
}

func kindFor(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthorization
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return ErrTransient
	}
}

// UserMessage turns an error into the inline text shown next to the
// control that failed. Nil yields "".
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	hasBody := errors.As(err, &apiErr) && apiErr.Message != ""

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		if hasBody {
			return apiErr.Message
		}
		return "Please check your input and try again."
	case errors.Is(err, ErrNotFound):
		return "This item no longer exists."
	case errors.Is(err, ErrAuthorization):
		if apiErr != nil && apiErr.Status == http.StatusUnauthorized {
			return "Please sign in to continue."
		}
		return "You don't have permission to do that."
	default:
		return "Something went wrong. Please try again."
	}
}
