package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"auth error should not retry", ErrorClassAuth, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldRetry(tt.errorClass))
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "rejected request with body",
			apiError: &APIError{
				Kind:       ErrClientRequestRejected,
				Message:    "POST v1/buyer/stats/data failed",
				StatusCode: 400,
				Body:       `{"message":"unknown dimension"}`,
			},
			expected: `client request rejected: POST v1/buyer/stats/data failed (status 400): {"message":"unknown dimension"}`,
		},
		{
			name: "processing failure with operation",
			apiError: &APIError{
				Kind:        ErrReportProcessingFailed,
				Message:     "please try again later",
				OperationID: "op-1",
			},
			expected: "report processing failed: please try again later (operation op-1)",
		},
		{
			name: "wrapped cause",
			apiError: &APIError{
				Kind: ErrAuthenticationFailed,
				Err:  errors.New("connection refused"),
			},
			expected: "authentication failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.apiError.Error())
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("wrapped error")
	apiErr := &APIError{Kind: ErrServerUnavailable, Err: cause}

	assert.ErrorIs(t, apiErr, ErrServerUnavailable)
	assert.ErrorIs(t, apiErr, cause)

	wrapped := fmt.Errorf("page 3: %w", apiErr)
	var target *APIError
	require.ErrorAs(t, wrapped, &target)
	assert.Same(t, apiErr, target)
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, ""},
		{"auth", NewAPIError(ErrAuthenticationFailed, "bad secret"), CategoryUser},
		{"rejected", NewAPIError(ErrClientRequestRejected, "bad dimension"), CategoryUser},
		{"unavailable", NewAPIError(ErrServerUnavailable, "quota"), CategoryService},
		{"malformed", fmt.Errorf("poll: %w", NewAPIError(ErrMalformedServerResponse, "no status")), CategoryService},
		{"processing", NewAPIError(ErrReportProcessingFailed, "failed"), CategoryService},
		{"other", errors.New("boom"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short body", Snippet([]byte("short body")))

	got := Snippet([]byte(strings.Repeat("x", bodySnippetLimit+100)))
	assert.Len(t, got, bodySnippetLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
