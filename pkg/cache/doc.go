// Package cache implements the fast (volatile) cache tier and its
// maintenance tooling.
//
// The fast tier is a Redis key-value store holding JSON envelopes
// ([Entry]) keyed by deterministic operation keys ([Key]). It is strictly
// an optimization layer in front of the durable tier and the upstream
// provider: when Redis is unavailable every read degrades to a miss and
// every write to a no-op, and the service keeps working at cold-fetch
// speed.
//
// # Keys
//
//	key := cache.FlowKey(52.52, 13.405, 1000)
//	key.String() // "traffic_flow:lat:52.5200000:lng:13.4050000:radius:1000"
//
// Parameter names are sorted before rendering, so the same logical request
// always produces the same key no matter how its parameters were supplied.
// Coordinates are canonicalized via [FormatCoord] to prevent float
// formatting drift from fragmenting the cache.
//
// # Maintenance
//
// [Sweeper.PurgeStale] removes keys whose Redis-reported TTL is unset or
// non-positive. This trusts the tier's own expiry signal rather than
// tracking entry age independently; see DESIGN.md for the trade-off.
//
// # Metrics
//
//   - traffic_cache_hits_total{tier} - hits by tier (fast, durable)
//   - traffic_cache_misses_total - requests missing both tiers
//   - traffic_cache_errors_total{operation} - degraded fast-tier operations
//   - traffic_sweeper_purged_total{tier} - entries removed by the sweeper
package cache
