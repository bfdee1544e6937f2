package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorConstructors(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		{NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{NewForbidden("wrong role"), "FORBIDDEN", http.StatusForbidden},
		{NewConflict("already closed", nil), "CONFLICT", http.StatusConflict},
		{NewRetryableConflict("slot claimed", nil), "CONFLICT_RETRYABLE", http.StatusConflict},
		{NewInternalError(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		var domainErr *DomainError
		require.ErrorAs(t, tc.err, &domainErr)
		assert.Equal(t, tc.code, domainErr.Code)
		assert.Equal(t, tc.status, domainErr.HTTPStatus)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableConflict("slot claimed", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("routing: %w", NewRetryableConflict("slot claimed", nil))))
	assert.False(t, IsRetryable(NewConflict("already closed", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewConflict("already closed", map[string]any{"ticket_id": "t1"})
	converted := ToDomainError(original)
	assert.Equal(t, "CONFLICT", converted.Code)
	assert.Equal(t, map[string]any{"ticket_id": "t1"}, converted.Details)
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	converted := ToDomainError(errors.New("pool exhausted"))
	assert.Equal(t, "INTERNAL_ERROR", converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
	assert.ErrorContains(t, converted, "pool exhausted")

	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestDomainErrorMessage(t *testing.T) {
	wrapped := NewInternalError(errors.New("boom"))
	assert.Equal(t, "internal server error: boom", wrapped.Error())
	assert.ErrorContains(t, errors.Unwrap(wrapped.(*DomainError)), "boom")
}
