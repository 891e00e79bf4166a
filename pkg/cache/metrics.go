package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier (fast, durable).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traffic_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks requests that missed both cache tiers.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "traffic_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks fast-tier operation errors. Every error here
	// was degraded to a miss or a no-op, never surfaced to a caller.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traffic_cache_errors_total",
			Help: "Total number of fast cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// SweeperPurged tracks entries removed by the maintenance sweeper.
	SweeperPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traffic_sweeper_purged_total",
			Help: "Total number of cache entries purged by the sweeper",
		},
		[]string{"tier"},
	)
)
