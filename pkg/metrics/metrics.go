// Package metrics provides the Prometheus registry and exposition endpoint
// for the catalog client. All metrics are defined in their respective
// packages (client, ratelimit, cache, loader) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the catalog client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics on its own listener.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// Listen binds addr and returns a server ready to Serve. Use ":0" to pick a
// free port.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		ln:     ln,
		logger: logger.With().Str("component", "metrics").Logger(),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics serve: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - dex_rate_limit_streak (Gauge): Consecutive 429 responses since the last success
//   - dex_rate_limited_total (Counter): 429 responses observed
//   - dex_rate_limit_store_errors_total{operation} (Counter): Rate limit store errors
//
// Request Metrics (pkg/client):
//   - dex_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - dex_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - dex_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - dex_retries_total (Counter): Retry attempts after a 429
//   - dex_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - dex_cache_hits_total{key} (Counter): Cache hits by key kind (id, name)
//   - dex_cache_misses_total (Counter): Misses that led to a fetch
//   - dex_cache_entries (Gauge): Items in the session cache
//   - dex_cache_fetch_errors_total (Counter): Failed item fetches
//
// Load Metrics (pkg/loader):
//   - dex_loads_total{outcome} (Counter): Loads by outcome (ok, no_results, error, stale, exhausted, dropped)
//   - dex_load_duration_seconds{source} (Histogram): Load duration by source (global, category)
//   - dex_items_rendered_total (Counter): Items handed to the renderer
//   - dex_resets_total{trigger} (Counter): List resets by trigger (search, category, refresh)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(dex_cache_hits_total[5m])) /
//   (sum(rate(dex_cache_hits_total[5m])) + sum(rate(dex_cache_misses_total[5m])))
//
//   # Rate Limit Streak
//   dex_rate_limit_streak >= 3
//
//   # Failed Load Ratio
//   rate(dex_loads_total{outcome="error"}[5m]) / rate(dex_loads_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dex_request_duration_seconds_bucket[5m]))
