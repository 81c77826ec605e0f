package api

import (
	"errors"
	"net/http"

	"github.com/lessonworks/analysis-api/internal/domain"
	"github.com/lessonworks/analysis-api/internal/service/auth"
	"github.com/lessonworks/analysis-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrResultNotFound),
		errors.Is(err, store.ErrLessonNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrEmptyLessonID),
		errors.Is(err, domain.ErrEmptyTaskID),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidMaxRetries),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
