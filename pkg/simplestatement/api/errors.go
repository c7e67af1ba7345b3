package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, "validation_error", message)
}

// handleServiceError maps domain errors to HTTP responses
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *simplestatement.ValidationError
	switch {
	case errors.As(err, &verr):
		badRequest(w, r, verr.Error())
	case errors.Is(err, simplestatement.ErrValidation):
		badRequest(w, r, err.Error())
	case errors.Is(err, simplestatement.ErrStatementNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Statement not found")
	case errors.Is(err, simplestatement.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many download-link requests, please retry later.")
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
	}
}
