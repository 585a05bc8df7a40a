// Package client provides the authenticated Adform API transport with
// bounded retry, credential refresh and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/Sternrassler/adform-stats-client/pkg/tokencache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Adform API locations.
const (
	DefaultBaseURL  = "https://api.adform.com/"
	DefaultTokenURL = "https://id.adform.com/sts/connect/token"
	DefaultScope    = "https://api.adform.com/scope/buyer.stats"

	// EndpointStats accepts report submissions; finished reports live below it.
	EndpointStats = "v1/buyer/stats/data"

	// EndpointOperations holds the status resources of submitted reports.
	EndpointOperations = "v1/buyer/stats/operations"
)

// Prometheus metrics for Adform client operations.
var (
	adformRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adform_requests_total",
		Help: "Total Adform API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	adformRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adform_request_duration_seconds",
		Help:    "Adform API call duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	adformErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adform_errors_total",
		Help: "Total Adform API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable rejections (400, 404, 422, 501...).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401 and 403.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents the transient 5xx statuses 500, 502, 503 and 504.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 quota errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the response body into target.
func (r *Response) JSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// TokenStore caches bearer tokens between runs. *tokencache.Manager implements it.
type TokenStore interface {
	Get(ctx context.Context, key tokencache.Key) (*tokencache.Entry, error)
	Set(ctx context.Context, key tokencache.Key, entry *tokencache.Entry) error
	Delete(ctx context.Context, key tokencache.Key) error
}

// Client is the Adform API client.
// Send is safe to call from one goroutine at a time; the credential may be
// read concurrently while it is replaced.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	credential atomic.Pointer[Credential]
	cached     atomic.Pointer[cachedLogin]
	tokens     TokenStore
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Adform API. Relative paths passed to Send resolve against it.
	BaseURL string

	// OAuth2 token endpoint and scope for the client-credentials grant
	TokenURL string
	Scope    string

	// AccessToken is a pre-issued bearer token. Optional when Login is used.
	AccessToken string

	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	Retry RetryConfig

	// TokenCache is optional; nil disables token reuse across runs.
	TokenCache TokenStore

	// HTTPClient overrides the default http.Client (Timeout is then ignored).
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration pointing at the production API.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		TokenURL:    DefaultTokenURL,
		Scope:       DefaultScope,
		AccessToken: accessToken,
		UserAgent:   "adform-stats-client/1.0",
		Timeout:     60 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a new Adform client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "adform-stats-client/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		tokens:     cfg.TokenCache,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}
	if cfg.AccessToken != "" {
		c.SetCredential(cfg.AccessToken)
	}

	return c, nil
}

// statusError is the per-attempt failure for a status >= 300.
type statusError struct {
	statusCode int
	body       []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.statusCode)
}

// Send performs an authenticated request, retrying transient failures.
// body, when non-nil, is sent as JSON. Paths are relative to the base URL
// unless absolute.
//
// Only 429, 500, 502, 503, 504 and connection failures are retried. A
// submission that got a 2xx is never repeated, but a retried submission
// whose first attempt reached the server could still create a second
// report job on the server side.
//
// A 401 or 403 on a token taken from the token cache evicts it, logs in
// again and repeats the request once.
func (c *Client) Send(ctx context.Context, method, path string, body any) (*Response, error) {
	resp, err := c.send(ctx, method, path, body)
	if err == nil || !errors.Is(err, ErrAuthenticationFailed) {
		return resp, err
	}

	replaced, refreshErr := c.replaceCachedCredential(ctx)
	if refreshErr != nil {
		return nil, refreshErr
	}
	if !replaced {
		return nil, err
	}
	return c.send(ctx, method, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	endpoint := routeLabel(path)

	target, err := c.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	startTime := time.Now()
	defer func() {
		adformRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing Adform request")

	var resp *Response
	var errClass ErrorClass

	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		r, reqErr := c.doOnce(ctx, method, target, payload)
		if reqErr != nil {
			if ctx.Err() != nil {
				// caller gave up; not a transport fault
				errClass = ""
				return reqErr
			}
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errClass = c.classifyError(0, reqErr)
			adformErrorsTotal.WithLabelValues(string(errClass)).Inc()
			adformRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return reqErr
		}

		adformRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode >= 300 {
			errClass = c.classifyError(r.StatusCode, nil)
			adformErrorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status_code", r.StatusCode).
				Str("error_class", string(errClass)).
				Str("body", Snippet(r.Body)).
				Msg("Adform request error")

			return &statusError{statusCode: r.StatusCode, body: r.Body}
		}

		resp = r
		return nil
	}, func(error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		return nil, c.translate(retryErr, method, endpoint)
	}

	return resp, nil
}

// translate turns a retry outcome into the public error taxonomy.
func (c *Client) translate(err error, method, endpoint string) error {
	if errors.Is(err, ErrContextCancelled) {
		return err
	}

	var exhausted *exhaustedError
	if errors.As(err, &exhausted) {
		apiErr := &APIError{
			Kind: ErrServerUnavailable,
			Message: fmt.Sprintf("client is unable to fetch data from server (%s %s, %d attempts); "+
				"please check your Adform API quota limits, in case of error #429 the maximum allowed number of requests has been reached",
				method, endpoint, exhausted.attempts),
			Err: exhausted.lastErr,
		}
		var se *statusError
		if errors.As(exhausted.lastErr, &se) {
			apiErr.StatusCode = se.statusCode
			apiErr.Body = Snippet(se.body)
			apiErr.Err = nil
		}
		return apiErr
	}

	var se *statusError
	if errors.As(err, &se) {
		kind := ErrClientRequestRejected
		if c.classifyError(se.statusCode, nil) == ErrorClassAuth {
			kind = ErrAuthenticationFailed
		}
		return &APIError{
			Kind:       kind,
			Message:    fmt.Sprintf("%s %s failed", method, endpoint),
			StatusCode: se.statusCode,
			Body:       Snippet(se.body),
		}
	}

	return fmt.Errorf("%s %s: %w", method, endpoint, err)
}

// doOnce executes a single attempt and reads the whole body.
func (c *Client) doOnce(ctx context.Context, method, target string, payload []byte) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if cred := c.credential.Load(); cred != nil && cred.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(statusCode int, err error) ErrorClass {
	if err != nil {
		c.logger.Debug().Str("class", string(ErrorClassNetwork)).Msg("Error classified")
		return ErrorClassNetwork
	}

	var class ErrorClass
	switch statusCode {
	case http.StatusTooManyRequests:
		class = ErrorClassRateLimit
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		class = ErrorClassServer
	case http.StatusUnauthorized, http.StatusForbidden:
		class = ErrorClassAuth
	default:
		if statusCode < 300 {
			return ""
		}
		class = ErrorClassClient
	}

	c.logger.Debug().Str("class", string(class)).Msg("Error classified")
	return class
}

// resolve turns path into an absolute URL.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// routeLabel maps a request path to a bounded metrics label.
func routeLabel(path string) string {
	p := path
	if u, err := url.Parse(path); err == nil {
		p = u.Path
	}
	p = strings.Trim(p, "/")

	switch {
	case p == EndpointStats:
		return EndpointStats
	case strings.HasPrefix(p, EndpointStats+"/"):
		return EndpointStats + "/{location}"
	case strings.HasPrefix(p, EndpointOperations+"/"):
		return EndpointOperations + "/{operation}"
	default:
		return "other"
	}
}

// Get performs a GET request against an API path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, http.MethodGet, path, nil)
}

// Post performs a JSON POST request against an API path.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPost, path, body)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
