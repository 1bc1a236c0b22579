package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness ("fresh", "stale")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legis_cache_hits_total",
			Help: "Total number of cache hits by freshness",
		},
		[]string{"freshness"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legis_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEntrySize tracks the size of stored entries
	CacheEntrySize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legis_cache_entry_size_bytes",
			Help:    "Size of stored cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// NotModifiedResponses tracks revalidations answered with 304
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legis_304_responses_total",
			Help: "Total number of 304 Not Modified revalidations",
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legis_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legis_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
