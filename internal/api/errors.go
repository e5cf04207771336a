package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/recall-api/internal/domain"
	"github.com/phrazzld/recall-api/internal/service"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrTaskFinished):
		return http.StatusConflict

	case errors.Is(err, domain.ErrTooManyFlashcards),
		errors.Is(err, domain.ErrInvalidTaskType):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrTaskFinished):
		return "Task already finished"

	case errors.Is(err, domain.ErrTooManyFlashcards):
		return "Requested flashcard count exceeds the limit"

	case errors.Is(err, domain.ErrInvalidTaskType):
		return "Invalid task type"

	default:
		return "An unexpected error occurred"
	}
}
