package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	adformRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adform_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	adformRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adform_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.3, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"error_class"})

	adformRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adform_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration: ten retries
// starting at 0.3s and doubling up to two minutes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        10,
		InitialBackoff:    300 * time.Millisecond,
		MaxBackoff:        120 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// withDefaults fills zero fields from DefaultRetryConfig.
func (rc RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.InitialBackoff <= 0 {
		rc.InitialBackoff = def.InitialBackoff
	}
	if rc.MaxBackoff <= 0 {
		rc.MaxBackoff = def.MaxBackoff
	}
	if rc.BackoffMultiplier < 1 {
		rc.BackoffMultiplier = def.BackoffMultiplier
	}
	return rc
}

// backoffFor returns the un-jittered wait before retry number n (1-based).
func (rc RetryConfig) backoffFor(n int) time.Duration {
	backoff := float64(rc.InitialBackoff)
	for i := 1; i < n; i++ {
		backoff *= rc.BackoffMultiplier
		if backoff >= float64(rc.MaxBackoff) {
			return rc.MaxBackoff
		}
	}
	return time.Duration(backoff)
}

// exhaustedError is returned by retryWithBackoff when every attempt failed
// with a retryable class. lastErr is the final attempt's failure.
type exhaustedError struct {
	attempts   int
	errorClass ErrorClass
	lastErr    error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d attempts: %v", e.attempts, e.lastErr)
}

func (e *exhaustedError) Unwrap() error {
	return e.lastErr
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// classify decides, per failure, whether the error class is retryable.
// It respects context cancellation and adds jitter to prevent thundering herd.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error, classify func(error) ErrorClass) error {
	config = config.withDefaults()
	maxAttempts := config.MaxRetries + 1

	var lastErr error
	var errorClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass = classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		adformRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// ±20% jitter
		backoff := config.backoffFor(attempt)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		adformRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	adformRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &exhaustedError{attempts: maxAttempts, errorClass: errorClass, lastErr: lastErr}
}
