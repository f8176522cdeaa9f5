package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
)

type detailed struct{}

func (detailed) Error() string        { return "weak" }
func (detailed) Unwrap() error        { return errs.ErrInvalidInput }
func (detailed) PublicDetail() string { return "too_short" }

func TestFromError_DomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", errs.ErrUnauthorized), http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("x: %w", errs.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("x: %w", errs.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("x: %w", errs.ErrConflict), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("x: %w", errs.ErrExpired), http.StatusGone, "EXPIRED"},
		{fmt.Errorf("x: %w", errs.ErrInvalidToken), http.StatusUnauthorized, "INVALID_TOKEN"},
		{fmt.Errorf("x: %w", errs.ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{fmt.Errorf("x: %w", errs.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{fmt.Errorf("db down"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{ErrInvalidCSRF, http.StatusForbidden, "INVALID_CSRF_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			got := FromError(tc.err)
			assert.Equal(t, tc.status, got.HTTPStatus)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestFromError_DoesNotMutatePredefined(t *testing.T) {
	got := FromError(detailed{})
	assert.Equal(t, "too_short", got.Detail)
	assert.Empty(t, ErrInvalidInput.Detail)
	assert.Nil(t, ErrInvalidInput.Err)
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("pq: password authentication failed for user admin"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "password authentication")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
}
