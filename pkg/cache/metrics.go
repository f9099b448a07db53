package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by key kind
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_cache_hits_total",
			Help: "Total number of item cache hits",
		},
		[]string{"key"}, // "id", "name"
	)

	// CacheMisses tracks misses that required a fetch
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dex_cache_misses_total",
			Help: "Total number of item cache misses",
		},
	)

	// CacheEntries tracks the number of cached items
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dex_cache_entries",
			Help: "Current number of items in the item cache",
		},
	)

	// FetchErrors tracks failed item fetches
	FetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dex_cache_fetch_errors_total",
			Help: "Total number of failed item fetches",
		},
	)
)
