package origin

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
	originRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cover_origin_retries_total",
		Help: "Total number of origin retry attempts by error class",
	}, []string{"error_class"})

	originRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cover_origin_retry_backoff_seconds",
		Help:    "Backoff duration for origin retries by error class",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"error_class"})

	originRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cover_origin_retry_exhausted_total",
		Help: "Total number of times origin retries were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff calls fn until it succeeds, fails with a class that is
// not retried, or MaxAttempts is reached. Waits between attempts grow
// exponentially with ±20% jitter and end early on context cancellation.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() (ErrorClass, error)) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	var errorClass ErrorClass
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		errorClass, lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Origin request succeeded after retry")
			}
			return nil
		}

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= attempts {
			break
		}

		originRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		originRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying origin request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	originRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", attempts).
		Msg("Origin retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
