package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// FastCache is the volatile first lookup tier. It is strictly an
// optimization: every Redis failure degrades to a miss (Get) or a no-op
// (Set/Delete) and is never surfaced to callers. Correctness must not
// depend on this tier being present.
type FastCache struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewFastCache creates a fast cache over the given Redis client.
// A nil client yields a cache that always misses.
func NewFastCache(rdb *redis.Client, logger zerolog.Logger) *FastCache {
	return &FastCache{
		rdb:    rdb,
		logger: logger,
	}
}

// Get retrieves an entry by key. Returns nil on miss, on expiry, and on
// any Redis or decode error.
func (c *FastCache) Get(ctx context.Context, key Key) *Entry {
	if c.rdb == nil {
		return nil
	}

	cacheKey := key.String()

	data, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			CacheErrors.WithLabelValues("get").Inc()
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Fast cache get failed, treating as miss")
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Corrupt fast cache entry, treating as miss")
		_ = c.rdb.Del(ctx, cacheKey).Err()
		return nil
	}

	// Redis TTL and entry expiry are set together, but guard against
	// clock skew between writers.
	if entry.IsExpired() {
		_ = c.rdb.Del(ctx, cacheKey).Err()
		return nil
	}

	return &entry
}

// Set stores an entry with a Redis TTL matching the entry's expiry.
// Returns false (without error) when the entry is already expired or the
// store is unavailable.
func (c *FastCache) Set(ctx context.Context, key Key, entry *Entry) bool {
	if c.rdb == nil || entry == nil {
		return false
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return false
	}

	cacheKey := key.String()

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Fast cache marshal failed")
		return false
	}

	if err := c.rdb.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", cacheKey).Msg("Fast cache set failed")
		return false
	}

	return true
}

// Delete removes an entry. Returns false when the store is unavailable.
func (c *FastCache) Delete(ctx context.Context, key Key) bool {
	if c.rdb == nil {
		return false
	}

	if err := c.rdb.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Fast cache delete failed")
		return false
	}

	return true
}

// Available reports whether the backing store currently answers pings.
func (c *FastCache) Available(ctx context.Context) bool {
	if c.rdb == nil {
		return false
	}
	return c.rdb.Ping(ctx).Err() == nil
}
