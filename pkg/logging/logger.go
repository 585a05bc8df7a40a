// Package logging configures zerolog for the extractor and hands out
// component-tagged loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used as the "component" field.
const (
	ComponentClient     = "adform-client"
	ComponentSubmitter  = "report-submitter"
	ComponentPoller     = "report-poller"
	ComponentFetcher    = "paginated-fetcher"
	ComponentTokenCache = "token-cache"
	ComponentExtractor  = "extractor"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
// Loggers created by NewLogger afterwards inherit its output.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

// parseLevel converts LogLevel to zerolog.Level, defaulting to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow and protocol detail
//   - Each API call (endpoint, method)
//   - Report submissions (operation_id, location_id, offset)
//   - Pending status reads
//   - Token cache hits
//
// Info: extraction progress
//   - Bearer token refreshed
//   - Page fetched (offset, rows)
//   - Extraction complete (rows, pages, duration)
//   - Metrics server startup/shutdown
//
// Warn: conditions the extractor recovers from
//   - Retry attempts (error_class, backoff)
//   - Status reads without a status field
//   - Token cache errors (fallback to the token endpoint)
//
// Error: failures surfaced to the caller
//   - Retries exhausted
//   - Report operation failed
//   - Anomaly budget exhausted
//   - Authentication failures
//
// Context Fields:
//   - endpoint: API route label (v1/buyer/stats/data, .../{location}, .../{operation})
//   - status_code: HTTP status code
//   - error_class: client, auth, server, rate_limit, network
//   - operation_id: report operation handle
//   - location_id: report result handle
//   - offset: paging offset of the current page
//   - body: truncated response body
//   - category: user or service
