package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Retry policy constants.
const (
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries = 2

	// Backoff is the fixed wait before each retry.
	Backoff = 600 * time.Millisecond
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries after the initial request.
	MaxRetries int

	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		Backoff:    Backoff,
	}
}

// retryOnRateLimit runs fn until it succeeds, fails with a non-retriable
// error, or the retry budget is spent. Only *NetworkError values whose class
// is retriable are retried.
func retryOnRateLimit(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info().
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		var netErr *NetworkError
		if !errors.As(err, &netErr) || !shouldRetry(netErr.ErrorClass) {
			return err
		}

		if attempt >= config.MaxRetries {
			retryExhaustedTotal.WithLabelValues(string(netErr.ErrorClass)).Inc()
			logger.Warn().
				Str("url", netErr.URL).
				Str("error_class", string(netErr.ErrorClass)).
				Int("attempts", attempt+1).
				Msg("Retry attempts exhausted")

			return &NetworkError{
				URL:        netErr.URL,
				StatusCode: netErr.StatusCode,
				ErrorClass: netErr.ErrorClass,
				Message:    netErr.Message,
				Err:        fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt+1, ErrRateLimited),
			}
		}

		retriesTotal.WithLabelValues(string(netErr.ErrorClass)).Inc()
		logger.Debug().
			Str("url", netErr.URL).
			Int("attempt", attempt+1).
			Dur("backoff", config.Backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(config.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}
