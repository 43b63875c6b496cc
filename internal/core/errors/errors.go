package errors

import (
	"errors"
	"fmt"
)

var (
	// Ingestion
	ErrUnauthorized = errors.New("unauthorized")

	// Upstream issue tracker
	ErrUpstream      = errors.New("upstream request failed")
	ErrIssueNotFound = errors.New("issue not found")

	// Event channel
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnsupportedEvent = errors.New("unsupported event")

	// Reconciliation
	ErrStaleReference = errors.New("reconciliation target not found")

	// Request validation
	ErrCommentBodyRequired = errors.New("comment body is required")
	ErrCommentBodyTooLong  = errors.New("comment body exceeds maximum length")
	ErrInvalidIssueIID     = errors.New("invalid issue iid")
)

// AppError carries a client-facing message and code alongside the cause.
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewBadRequestError reports a request the relay could not parse.
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// UpstreamError describes a failed call against the issue tracker API.
// It unwraps to ErrUpstream so callers can match the whole category.
type UpstreamError struct {
	Op         string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + ErrUpstream.Error()
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// Temporary reports whether retrying the same call could succeed: the
// request never got an answer, or the tracker answered 429 or 5xx.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// ValidationErrors collects field-level messages for one request.
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
