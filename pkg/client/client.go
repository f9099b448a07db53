// Package client provides the catalog HTTP gateway: GET requests with bounded
// retry on rate limiting, optional outbound pacing, and rate limit tracking.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/dex-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dex_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// Client is the catalog API gateway.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry policy for rate limited responses.
	Retry RetryConfig

	// RequestsPerSecond paces outbound requests. 0 disables pacing.
	RequestsPerSecond float64

	// Tracker records rate limit observations. Nil selects an in-memory tracker.
	Tracker *ratelimit.Tracker
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   15 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.Retry.Backoff <= 0 {
		return nil, fmt.Errorf("backoff must be > 0 (got %s)", cfg.Retry.Backoff)
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %g)", cfg.RequestsPerSecond)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = ratelimit.NewTracker(nil, logger)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Get fetches rawURL and returns the response body. HTTP 429 is retried with
// a fixed backoff up to the configured budget; any other non-success status
// fails immediately with a *NetworkError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	endpoint := endpointLabel(rawURL)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryOnRateLimit(ctx, c.config.Retry, c.logger, func() error {
		var attemptErr error
		body, attemptErr = c.attempt(ctx, rawURL, endpoint)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, rawURL, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", rawURL).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &NetworkError{
			URL:        rawURL,
			ErrorClass: ErrorClassNetwork,
			Message:    "transport failure",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, c.statusError(ctx, rawURL, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &NetworkError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if err := c.tracker.RecordSuccess(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
	}

	return body, nil
}

// statusError builds the error for a non-success response.
func (c *Client) statusError(ctx context.Context, rawURL string, resp *http.Response) error {
	errClass := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(errClass)).Inc()

	c.logger.Warn().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("Catalog request error")

	netErr := &NetworkError{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    resp.Status,
	}

	if errClass == ErrorClassRateLimit {
		if err := c.tracker.RecordRateLimited(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
		}
		netErr.Err = ErrRateLimited
	}

	return netErr
}

// Tracker returns the rate limit tracker used by the client.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// endpointLabel reduces a URL to a low-cardinality route label, e.g.
// ".../pokemon/25/" -> "/pokemon/{ref}".
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	switch n := len(segments); {
	case n == 0:
		return "/"
	case n >= 2 && (segments[n-2] == "pokemon" || segments[n-2] == "type"):
		return "/" + segments[n-2] + "/{ref}"
	default:
		return "/" + segments[n-1]
	}
}
