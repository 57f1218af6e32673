package api

import (
	"errors"
	"net/http"

	"github.com/printtrack/printtrack/internal/domain"
	"github.com/printtrack/printtrack/internal/store"
	"github.com/printtrack/printtrack/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, task.ErrFileNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrEmptyTaskID),
		errors.Is(err, domain.ErrInvalidTaskID),
		errors.Is(err, domain.ErrEmptyFilename):
		return http.StatusBadRequest

	// The printer refusing a command is an upstream failure, not ours
	case errors.Is(err, task.ErrPrintStartRejected):
		return http.StatusBadGateway

	// The database being unreachable is a service availability problem
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrFileNotFound):
		return "File does not exist"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task does not exist"

	case errors.Is(err, domain.ErrEmptyTaskID):
		return "No task specified"

	case errors.Is(err, domain.ErrInvalidTaskID):
		return "Invalid task id"

	case errors.Is(err, domain.ErrEmptyFilename):
		return "No filename specified"

	case errors.Is(err, task.ErrPrintStartRejected):
		return "Printer rejected print start"

	case errors.Is(err, store.ErrStoreUnavailable):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}
