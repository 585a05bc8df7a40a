// Package testutil provides testing utilities for the Adform stats client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Adform API paths as seen by the mock server.
const (
	SubmitPath       = "/v1/buyer/stats/data"
	ResultsPrefix    = "/v1/buyer/stats/data/"
	OperationsPrefix = "/v1/buyer/stats/operations/"
	TokenPath        = "/sts/connect/token"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request the mock server received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// MockAdform is a configurable mock Adform API server for testing.
type MockAdform struct {
	server         *httptest.Server
	mu             sync.RWMutex
	handlers       map[string]http.HandlerFunc
	prefixHandlers map[string]http.HandlerFunc
	requests       []RecordedRequest

	// report script state
	pages   []int
	columns []string
	offsets []int
}

// NewMockAdform creates a new mock Adform server.
func NewMockAdform() *MockAdform {
	mock := &MockAdform{
		handlers:       make(map[string]http.HandlerFunc),
		prefixHandlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler := mock.lookup(r.URL.Path)
		mock.mu.Unlock()

		r.Body = io.NopCloser(strings.NewReader(string(body)))

		if handler != nil {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// lookup finds the exact handler for path or the longest matching prefix handler.
// Callers hold mu.
func (m *MockAdform) lookup(path string) http.HandlerFunc {
	if h, ok := m.handlers[path]; ok {
		return h
	}

	prefixes := make([]string, 0, len(m.prefixHandlers))
	for p := range m.prefixHandlers {
		if strings.HasPrefix(path, p) {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return nil
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return m.prefixHandlers[prefixes[0]]
}

// URL returns the mock server URL.
func (m *MockAdform) URL() string {
	return m.server.URL
}

// TokenURL returns the URL of the mock token endpoint.
func (m *MockAdform) TokenURL() string {
	return m.server.URL + TokenPath
}

// Client returns an http.Client wired to the mock server.
func (m *MockAdform) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockAdform) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAdform) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.offsets = nil
}

// SetHandler sets a custom handler for an exact path.
func (m *MockAdform) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetPrefixHandler sets a handler for every path below prefix.
func (m *MockAdform) SetPrefixHandler(prefix string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixHandlers[prefix] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAdform) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, respond(resp))
}

// SetSequence answers successive requests to path with resps in order;
// the last response repeats once the sequence is used up.
func (m *MockAdform) SetSequence(path string, resps ...MockResponse) {
	m.SetHandler(path, sequence(resps))
}

// SetPrefixSequence is SetSequence for every path below prefix.
func (m *MockAdform) SetPrefixSequence(prefix string, resps ...MockResponse) {
	m.SetPrefixHandler(prefix, sequence(resps))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAdform) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns a copy of every recorded request.
func (m *MockAdform) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo returns recorded requests whose path starts with prefix.
func (m *MockAdform) RequestsTo(prefix string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAdform) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1].Header
}

// ScriptReport wires submit, operation and result endpoints so that the
// n-th submitted report succeeds immediately and yields pageSizes[n] rows.
// Submissions beyond the script yield empty pages.
func (m *MockAdform) ScriptReport(columns []string, pageSizes ...int) {
	m.mu.Lock()
	m.pages = pageSizes
	m.columns = columns
	m.offsets = nil
	m.mu.Unlock()

	m.SetHandler(SubmitPath, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Paging *struct {
				Offset int `json:"offset"`
			} `json:"paging"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		m.mu.Lock()
		offset := 0
		if body.Paging != nil {
			offset = body.Paging.Offset
		}
		m.offsets = append(m.offsets, offset)
		job := len(m.offsets) - 1
		m.mu.Unlock()

		w.Header().Set("Operation-Location", fmt.Sprintf("%s%sop-%d", m.server.URL, OperationsPrefix, job))
		w.Header().Set("Location", fmt.Sprintf("%s%sloc-%d", m.server.URL, ResultsPrefix, job))
		w.WriteHeader(http.StatusAccepted)
	})

	m.SetPrefixResponse(OperationsPrefix, NewStatusResponse("succeeded"))

	m.SetPrefixHandler(ResultsPrefix, func(w http.ResponseWriter, r *http.Request) {
		var job int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, ResultsPrefix), "loc-%d", &job); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		m.mu.RLock()
		size := 0
		if job < len(m.pages) {
			size = m.pages[job]
		}
		offset := 0
		if job < len(m.offsets) {
			offset = m.offsets[job]
		}
		cols := m.columns
		m.mu.RUnlock()

		rows := make([][]any, size)
		for i := range rows {
			rows[i] = []any{"2024-01-01", offset + i, 100}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{
			"reportData": map[string]any{
				"columnHeaders": cols,
				"rows":          rows,
			},
		})
	})
}

// SetPrefixResponse configures a fixed response for every path below prefix.
func (m *MockAdform) SetPrefixResponse(prefix string, resp MockResponse) {
	m.SetPrefixHandler(prefix, respond(resp))
}

// SubmittedOffsets returns the paging offsets of scripted submissions in order.
func (m *MockAdform) SubmittedOffsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.offsets))
	copy(out, m.offsets)
	return out
}

// SetTokenResponse makes the token endpoint issue accessToken.
func (m *MockAdform) SetTokenResponse(accessToken string, expiresIn int) {
	m.SetResponse(TokenPath, MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"access_token": %q, "token_type": "Bearer", "expires_in": %d}`, accessToken, expiresIn),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

func respond(resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}
}

func sequence(resps []MockResponse) http.HandlerFunc {
	var mu sync.Mutex
	next := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[len(resps)-1]
		if next < len(resps) {
			resp = resps[next]
		}
		next++
		mu.Unlock()
		respond(resp)(w, r)
	}
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewStatusResponse creates an operation status response.
func NewStatusResponse(status string) MockResponse {
	return NewJSONResponse(fmt.Sprintf(`{"status": %q}`, status))
}

// NewSubmitResponse creates a successful submission response carrying the
// given operation and result locations. Empty values omit the header.
func NewSubmitResponse(operationLocation, location string) MockResponse {
	headers := map[string]string{}
	if operationLocation != "" {
		headers["Operation-Location"] = operationLocation
	}
	if location != "" {
		headers["Location"] = location
	}
	return MockResponse{StatusCode: http.StatusAccepted, Headers: headers}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 5xx response with the given status.
func NewServerErrorResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewBadRequestResponse creates a 400 response with a validation message.
func NewBadRequestResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"message": %q}`, message),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
