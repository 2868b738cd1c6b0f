package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks profiles served from Redis.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "igdump_cache_hits_total",
			Help: "Total number of profile cache hits",
		},
	)

	// CacheMisses tracks profiles that had to be fetched upstream.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "igdump_cache_misses_total",
			Help: "Total number of profile cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igdump_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
