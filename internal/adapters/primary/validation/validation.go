package validation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

// MaxBodyBytes caps JSON request bodies accepted by the REST proxy.
const MaxBodyBytes = 1 << 20

// Validator collects field errors for one request.
type Validator struct {
	errors *apperrors.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Err returns nil when nothing failed, so callers can return it directly.
func (v *Validator) Err() error {
	if !v.errors.HasErrors() {
		return nil
	}
	return v.errors
}

func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Required rejects blank strings, whitespace included.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// MaxLength counts characters, not bytes, to match GitLab's note limit.
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.errors.Add(field, "Must be at most "+strconv.Itoa(max)+" characters")
	}
	return v
}

// PositiveID parses a decimal identifier such as an issue iid. It records a
// field error and returns 0 when raw is not a positive integer.
func (v *Validator) PositiveID(field, raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		v.errors.Add(field, "Must be a positive integer")
		return 0
	}
	return id
}

type validatable interface {
	Validate() error
}

// DecodeAndValidate reads a JSON body of at most MaxBodyBytes into T and
// runs T's Validate method when it has one. An empty body is reported as
// missing rather than malformed.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var req T

	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, apperrors.NewBadRequestError(err, "Request body is required")
		case errors.As(err, &tooLarge):
			return nil, apperrors.NewBadRequestError(err, "Request body is too large")
		default:
			return nil, apperrors.NewBadRequestError(err, "Invalid request body")
		}
	}

	if v, ok := any(&req).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	return &req, nil
}
