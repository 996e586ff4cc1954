package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors for the portfolio resolution pipeline. Registered once from main
// via MustRegister; components record through the package-level vars.
var (
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_hits_total",
		Help: "Cache lookups that returned a live entry.",
	}, []string{"cache"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_misses_total",
		Help: "Cache lookups that missed or hit an expired entry.",
	}, []string{"cache"})

	CacheSweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_swept_entries_total",
		Help: "Expired entries removed by the periodic cache sweeper.",
	}, []string{"cache"})

	DenylistBlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_denylist_blocked_total",
		Help: "Token lookups skipped because the token is denylisted.",
	})

	DenylistAdditions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_denylist_additions_total",
		Help: "Tokens written to the denylist after an upstream rejection.",
	})

	RateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_ratelimit_window_waits_total",
		Help: "Times a request waited for sliding-window capacity.",
	})

	RateLimitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_ratelimit_retries_total",
		Help: "Operation retries triggered by upstream 429 responses.",
	})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_upstream_request_duration_seconds",
		Help:    "Duration of upstream API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"api"})

	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_fetch_duration_seconds",
		Help:    "Duration of a full per-venue portfolio fetch.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"venue"})
)

// MustRegister registers every pipeline collector with the default registry.
func MustRegister() {
	prometheus.MustRegister(
		CacheHits,
		CacheMisses,
		CacheSweeps,
		DenylistBlocks,
		DenylistAdditions,
		RateLimitWaits,
		RateLimitRetries,
		UpstreamRequestDuration,
		FetchDuration,
	)
}
