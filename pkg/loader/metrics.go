package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcomes.
const (
	outcomeOK        = "ok"
	outcomeNoResults = "no_results"
	outcomeError     = "error"
	outcomeStale     = "stale"
	outcomeExhausted = "exhausted"
	outcomeDropped   = "dropped"
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_loads_total",
		Help: "Load requests by outcome",
	}, []string{"outcome"})

	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dex_load_duration_seconds",
		Help:    "Duration of loads that reached the network, by source",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	itemsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_items_rendered_total",
		Help: "Items handed to the renderer",
	})

	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_resets_total",
		Help: "List resets by trigger",
	}, []string{"trigger"})
)
