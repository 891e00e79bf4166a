// Package metrics provides the centralized Prometheus metrics registry for
// the traffic cache. All metrics are defined in their respective packages
// (here, cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the traffic cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - traffic_cache_hits_total{tier} (Counter): Cache hits by tier (fast, durable)
//   - traffic_cache_misses_total (Counter): Requests that reached a cold fetch
//   - traffic_cache_errors_total{operation} (Counter): Fast tier operation errors
//   - traffic_sweeper_purged_total{tier} (Counter): Entries removed by maintenance purges
//
// Upstream Request Metrics (pkg/here):
//   - traffic_upstream_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - traffic_upstream_request_duration_seconds{operation} (Histogram): Logical operation duration
//   - traffic_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/here):
//   - traffic_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - traffic_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - traffic_upstream_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(traffic_cache_hits_total[5m])) /
//   (sum(rate(traffic_cache_hits_total[5m])) + sum(rate(traffic_cache_misses_total[5m])))
//
//   # Rate Limit Pressure
//   rate(traffic_upstream_errors_total{class="rate_limit"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(traffic_upstream_request_duration_seconds_bucket[5m]))
//
//   # Retry Exhaustion Rate
//   rate(traffic_upstream_retry_exhausted_total[5m])
