// Package api provides the HTTP handlers of the carmarket API and the
// standardized JSON error format they share.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/carmarket/internal/carrequest"
	"github.com/onnwee/carmarket/internal/middleware"
	"github.com/onnwee/carmarket/internal/notice"
	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/post"
	"github.com/onnwee/carmarket/internal/recency"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/user"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeBadRequest indicates a malformed request, such as invalid JSON.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limit_exceeded"

	// ErrCodeUnavailable indicates a dependency failed its readiness check.
	ErrCodeUnavailable = "service_unavailable"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records code for
// the logging middleware.
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Post not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	if middleware.GetErrorCode(ctx) == "" {
		ctx = middleware.SetErrorCode(ctx, code)
	}
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	notFoundErrors = []error{
		user.ErrUserNotFound,
		post.ErrPostNotFound,
		post.ErrUnknownOwner,
		post.ErrUnknownViewer,
		carrequest.ErrRequestNotFound,
		carrequest.ErrUnknownOwner,
		notice.ErrUnknownOwner,
		recency.ErrUnknownSubject,
	}
	validationErrors = []error{
		user.ErrInvalidUser,
		user.ErrEmptyPatch,
		post.ErrInvalidPost,
		post.ErrEmptyPatch,
		carrequest.ErrInvalidRequest,
		carrequest.ErrInvalidStatus,
		carrequest.ErrEmptyPatch,
		notice.ErrInvalidNotice,
		search.ErrInvalidInput,
		recency.ErrInvalidInput,
		paging.ErrInvalidPage,
		paging.ErrInvalidLimit,
		paging.ErrInvalidOffset,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps a domain error to its status and error code.
func classify(err error) (int, string) {
	switch {
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound, ErrCodeNotFound
	case matchesAny(err, validationErrors):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, user.ErrUserExists):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// errorMessage flattens joined errors into one line for clients.
func errorMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

// writeDomainError reports err from a repository or service call. Client
// errors carry the error text; internal failures are logged and answered
// with a generic message naming the failed action.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, action string) {
	status, code := classify(err)
	ctx := middleware.SetErrorCode(r.Context(), code)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(ctx)),
		)
		WriteError(w, ctx, status, code, "Failed to "+action)
		return
	}
	WriteError(w, ctx, status, code, errorMessage(err))
}
