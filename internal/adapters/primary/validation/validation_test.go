package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/issue-relay/internal/core/errors"
)

type noteRequest struct {
	Note string `json:"note"`
}

func (r *noteRequest) Validate() error {
	v := NewValidator()
	v.Required("note", r.Note).MaxLength("note", r.Note, 5)
	return v.Err()
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Required("a", "  ").
		MaxLength("b", "toolong", 3).
		MaxLength("c", "ok", 3)

	require.True(t, v.HasErrors())
	require.Error(t, v.Err())
	assert.Equal(t, []string{"This field is required"}, v.Errors().Errors["a"])
	assert.Equal(t, []string{"Must be at most 3 characters"}, v.Errors().Errors["b"])
	assert.NotContains(t, v.Errors().Errors, "c")

	assert.NoError(t, NewValidator().Err())
}

func TestValidator_MaxLengthCountsRunes(t *testing.T) {
	v := NewValidator()
	v.MaxLength("note", "ñandú", 5)

	assert.False(t, v.HasErrors(), "five characters, seven bytes")
}

func TestValidator_PositiveID(t *testing.T) {
	cases := []struct {
		raw   string
		want  int64
		valid bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			v := NewValidator()
			got := v.PositiveID("iid", tc.raw)

			assert.Equal(t, tc.want, got)
			assert.Equal(t, !tc.valid, v.HasErrors())
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	decode := func(body string) (*noteRequest, error) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return DecodeAndValidate[noteRequest](httptest.NewRecorder(), r)
	}

	t.Run("valid body", func(t *testing.T) {
		req, err := decode(`{"note":"hi"}`)

		require.NoError(t, err)
		assert.Equal(t, "hi", req.Note)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		_, err := decode(`{"note":`)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		assert.Equal(t, "Invalid request body", appErr.Message)
	})

	t.Run("empty body is reported as missing", func(t *testing.T) {
		_, err := decode("")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "Request body is required", appErr.Message)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		_, err := decode(`{"note":"` + strings.Repeat("x", MaxBodyBytes) + `"}`)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "Request body is too large", appErr.Message)
	})

	t.Run("validation failure is returned", func(t *testing.T) {
		_, err := decode(`{"note":"far too long"}`)

		var vErr *apperrors.ValidationErrors
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Errors, "note")
	})
}
