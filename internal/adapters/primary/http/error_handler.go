package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// upstreamRetryAfter is the hint sent with transient tracker failures.
const upstreamRetryAfter = 5

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// errorMapping ties a sentinel to the response clients see. Order matters:
// the first match wins, and a tracker 404 matches both ErrIssueNotFound and
// ErrUpstream.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means the error's own text
}

var errorMappings = []errorMapping{
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
	{apperrors.ErrIssueNotFound, http.StatusNotFound, "ISSUE_NOT_FOUND", "Issue not found"},
	{apperrors.ErrUpstream, http.StatusInternalServerError, "UPSTREAM_FAILURE", "Server error"},
	{apperrors.ErrInvalidIssueIID, http.StatusBadRequest, "INVALID_IID", "Invalid issue iid"},
	{apperrors.ErrCommentBodyRequired, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrCommentBodyTooLong, http.StatusBadRequest, "VALIDATION_ERROR", ""},
}

// ErrorHandler turns handler errors into JSON responses and logs them at a
// level matching the status.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := h.resolve(err)

	var upstream *apperrors.UpstreamError
	if errors.As(err, &upstream) && upstream.Temporary() {
		w.Header().Set("Retry-After", strconv.Itoa(upstreamRetryAfter))
	}

	h.logError(r, status, err)
	WriteJSON(w, status, resp)
}

func (h *ErrorHandler) resolve(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	}

	var fieldErrs *apperrors.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: fieldErrs.Errors,
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			return m.status, ErrorResponse{Error: msg, Code: m.code}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  "INTERNAL_ERROR",
	}
}

func (h *ErrorHandler) logError(r *http.Request, status int, err error) {
	logger := logging.LoggerFromContext(r.Context(), h.logger)
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err.Error(),
	}

	if status >= 500 {
		logger.Error("request failed", attrs...)
		return
	}
	logger.Warn("request rejected", attrs...)
}
