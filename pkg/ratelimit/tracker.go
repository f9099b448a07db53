package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitStreak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dex_rate_limit_streak",
		Help: "Consecutive HTTP 429 responses since the last success",
	})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_rate_limited_total",
		Help: "Total number of HTTP 429 responses observed",
	})

	rateLimitStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_rate_limit_store_errors_total",
		Help: "Rate limit store errors by operation",
	}, []string{"operation"})
)

// Tracker records 429 observations into a Store.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	// streak is this process' last known streak; RecordSuccess skips the
	// store round trip while it is zero.
	streak atomic.Int64
}

// NewTracker creates a tracker. A nil store selects a MemoryStore.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetState returns the current state from the store.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		rateLimitStoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	return state, nil
}

// RecordRateLimited records one 429 response.
func (t *Tracker) RecordRateLimited(ctx context.Context) error {
	state, err := t.store.RecordRateLimited(ctx, t.now())
	if err != nil {
		rateLimitStoreErrors.WithLabelValues("record_rate_limited").Inc()
		return fmt.Errorf("record rate limited: %w", err)
	}

	t.streak.Store(int64(state.Consecutive))
	rateLimitedTotal.Inc()
	rateLimitStreak.Set(float64(state.Consecutive))

	switch {
	case state.IsCritical():
		t.logger.Error().
			Int("consecutive", state.Consecutive).
			Int64("total", state.Total).
			Msg("Catalog rate limit CRITICAL - retries are likely to be exhausted")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("consecutive", state.Consecutive).
			Int64("total", state.Total).
			Msg("Catalog rate limit WARNING - server is throttling requests")
	default:
		t.logger.Debug().
			Int("consecutive", state.Consecutive).
			Msg("Catalog rate limit observed")
	}

	return nil
}

// RecordSuccess closes an open streak.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	if t.streak.Load() == 0 {
		return nil
	}

	state, err := t.store.RecordSuccess(ctx, t.now())
	if err != nil {
		rateLimitStoreErrors.WithLabelValues("record_success").Inc()
		return fmt.Errorf("record success: %w", err)
	}

	t.streak.Store(int64(state.Consecutive))
	rateLimitStreak.Set(float64(state.Consecutive))
	t.logger.Info().Msg("Catalog rate limit streak closed")

	return nil
}
