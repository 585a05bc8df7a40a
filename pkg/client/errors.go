package client

import (
	"errors"
	"fmt"
)

// Error kinds returned by the client and the report protocol built on it.
// Every failure surfaced to callers wraps exactly one of these.
var (
	// ErrAuthenticationFailed means the credentials were rejected or no token
	// could be obtained. The user must fix the configuration.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrClientRequestRejected means the API refused the request shape
	// (non-retryable status >= 300). The user must fix the query definition.
	ErrClientRequestRejected = errors.New("client request rejected")

	// ErrServerUnavailable is returned when all retry attempts are exhausted.
	ErrServerUnavailable = errors.New("server unavailable")

	// ErrMalformedServerResponse means the server violated the protocol
	// contract (missing headers, missing status, missing report data).
	ErrMalformedServerResponse = errors.New("malformed server response")

	// ErrReportProcessingFailed means the server reported the report
	// operation as failed.
	ErrReportProcessingFailed = errors.New("report processing failed")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Category splits errors into "fix your input" and "the service failed".
type Category string

const (
	// CategoryUser covers bad credentials and malformed requests.
	CategoryUser Category = "user"

	// CategoryService covers unavailability and protocol violations.
	CategoryService Category = "service"

	// CategoryUnknown is anything not produced by this client.
	CategoryUnknown Category = "unknown"
)

// bodySnippetLimit caps how much of a response body ends up in an error.
const bodySnippetLimit = 512

// APIError represents an Adform API error with diagnostic context.
type APIError struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	StatusCode  int
	OperationID string
	Body        string
	Message     string
	Err         error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.OperationID != "" {
		msg += fmt.Sprintf(" (operation %s)", e.OperationID)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewAPIError builds an APIError of the given kind.
func NewAPIError(kind error, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// CategoryOf classifies err for user-facing reporting.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrClientRequestRejected):
		return CategoryUser
	case errors.Is(err, ErrServerUnavailable),
		errors.Is(err, ErrMalformedServerResponse),
		errors.Is(err, ErrReportProcessingFailed):
		return CategoryService
	default:
		return CategoryUnknown
	}
}

// Snippet truncates a response body for inclusion in errors and logs.
func Snippet(body []byte) string {
	if len(body) <= bodySnippetLimit {
		return string(body)
	}
	return string(body[:bodySnippetLimit]) + "..."
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient, ErrorClassAuth:
		// 4xx errors are caller-fixable, retrying cannot help
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		// 429 usually means the API quota is spent for now
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
