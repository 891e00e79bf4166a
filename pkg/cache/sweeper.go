package cache

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPattern matches every key written by this service's operations.
const keyPattern = "traffic_*"

// Stats is a read-only snapshot of the fast tier.
type Stats struct {
	// Status is "ok" when the tier answers, "disabled" when it is
	// unreachable. A disabled tier is not an error condition.
	Status string `json:"status"`

	// KeyCount is the number of tracked cache keys.
	KeyCount int64 `json:"key_count"`

	// UsedMemoryBytes is the tier's reported memory usage, 0 when the
	// tier does not report it.
	UsedMemoryBytes int64 `json:"used_memory_bytes"`
}

// Sweeper performs administrative maintenance over the fast tier.
type Sweeper struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewSweeper creates a sweeper over the given Redis client.
func NewSweeper(rdb *redis.Client, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		rdb:    rdb,
		logger: logger,
	}
}

// PurgeStale removes every tracked key whose tier-reported remaining TTL is
// unset or non-positive, and returns the number of keys removed. This is a
// deliberate simplification: it trusts the tier's native expiry signal
// instead of reconstructing entry age, so keys written without a TTL are
// treated as stale.
func (s *Sweeper) PurgeStale(ctx context.Context) int {
	if s.rdb == nil {
		return 0
	}

	purged := 0
	var cursor uint64

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPattern, 100).Result()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Sweeper scan failed, aborting purge")
			return purged
		}

		for _, key := range keys {
			ttl, err := s.rdb.TTL(ctx, key).Result()
			if err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("Sweeper TTL check failed")
				continue
			}

			if ttl <= 0 {
				if err := s.rdb.Del(ctx, key).Err(); err != nil {
					s.logger.Warn().Err(err).Str("key", key).Msg("Sweeper delete failed")
					continue
				}
				purged++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if purged > 0 {
		SweeperPurged.WithLabelValues("fast").Add(float64(purged))
	}

	return purged
}

// Statistics returns a snapshot of the fast tier. When the tier is
// unreachable it returns a defined disabled status rather than failing.
func (s *Sweeper) Statistics(ctx context.Context) Stats {
	if s.rdb == nil {
		return Stats{Status: "disabled"}
	}

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Fast tier unreachable, reporting disabled statistics")
		return Stats{Status: "disabled"}
	}

	stats := Stats{Status: "ok"}

	count, err := s.countKeys(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Sweeper key count failed")
	} else {
		stats.KeyCount = count
	}

	if info, err := s.rdb.Info(ctx, "memory").Result(); err == nil {
		stats.UsedMemoryBytes = parseUsedMemory(info)
	}

	return stats
}

// countKeys counts tracked keys via SCAN so unrelated keys sharing the
// database are not included.
func (s *Sweeper) countKeys(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPattern, 100).Result()
		if err != nil {
			return count, err
		}
		count += int64(len(keys))

		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// parseUsedMemory extracts used_memory from an INFO memory section.
func parseUsedMemory(info string) int64 {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
