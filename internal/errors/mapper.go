// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// APIError is an error carrying an HTTP status code for the API layer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Map converts repo/infra errors into API errors with an HTTP status.
// Keeps the handler layer clean by centralizing error mapping.
func Map(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &APIError{Status: http.StatusNotFound, Message: "record not found"}

	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Status: http.StatusGatewayTimeout, Message: "request timed out"}

	case errors.Is(err, context.Canceled):
		return &APIError{Status: http.StatusRequestTimeout, Message: "request was canceled"}

	default:
		// fallback → bubble up error message for debugging
		return &APIError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}

// InvalidArgument creates a 400 error for bad input validation.
func InvalidArgument(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}
