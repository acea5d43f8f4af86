package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"idea-portal/internal/evaluation"
	"idea-portal/internal/linkage"
	"idea-portal/internal/repository"
	"idea-portal/internal/service"
	"idea-portal/internal/workflow"
)

// Common error messages shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgInternal           = "Internal server error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

// statusFor maps domain errors to HTTP status codes; ok is false for unexpected errors
func statusFor(err error) (code int, retry bool, ok bool) {
	switch {
	case errors.Is(err, evaluation.ErrInvalidInput), errors.Is(err, service.ErrInvalidUser):
		return http.StatusBadRequest, false, true
	case errors.Is(err, repository.ErrAggregationConflict):
		return http.StatusConflict, true, true
	case errors.Is(err, repository.ErrStatusChanged):
		return http.StatusConflict, true, true
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, service.ErrNotRatable), errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, false, true
	case errors.Is(err, workflow.ErrRoleNotPermitted), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, false, true
	case errors.Is(err, linkage.ErrLinkTargetNotFound):
		return http.StatusUnprocessableEntity, false, true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, false, true
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, false, true
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden, false, true
	}
	return http.StatusInternalServerError, false, false
}

// respondWithServiceError translates a service error into a JSON error response.
// Unexpected errors are logged and hidden behind a generic message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, retry, ok := statusFor(err)
	if !ok {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithJSON(w, code, ErrorResponse{Error: ErrMsgInternal})
		return
	}
	respondWithJSON(w, code, ErrorResponse{Error: err.Error(), Retry: retry})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}
