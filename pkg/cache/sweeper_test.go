package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestSweeper(t *testing.T) (*Sweeper, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewSweeper(rdb, zerolog.Nop()), rdb, mr
}

func TestSweeper_PurgeStale(t *testing.T) {
	sw, rdb, mr := newTestSweeper(t)
	ctx := context.Background()

	// One live entry, one entry without a TTL (treated as stale), and one
	// unrelated key that must be left alone.
	if err := rdb.Set(ctx, "traffic_flow:lat:1:lng:2:radius:300", "v", 5*time.Minute).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Set("traffic_flow:lat:3:lng:4:radius:300", "v")
	mr.Set("unrelated:key", "v")

	purged := sw.PurgeStale(ctx)
	if purged != 1 {
		t.Errorf("PurgeStale = %d, want 1", purged)
	}

	if !mr.Exists("traffic_flow:lat:1:lng:2:radius:300") {
		t.Error("live entry was purged")
	}
	if mr.Exists("traffic_flow:lat:3:lng:4:radius:300") {
		t.Error("TTL-less entry survived purge")
	}
	if !mr.Exists("unrelated:key") {
		t.Error("unrelated key was purged")
	}
}

func TestSweeper_Statistics(t *testing.T) {
	sw, rdb, _ := newTestSweeper(t)
	ctx := context.Background()

	rdb.Set(ctx, "traffic_flow:a", "v", time.Minute)
	rdb.Set(ctx, "traffic_incidents:b", "v", time.Minute)
	rdb.Set(ctx, "other:c", "v", time.Minute)

	stats := sw.Statistics(ctx)
	if stats.Status != "ok" {
		t.Errorf("Status = %q, want ok", stats.Status)
	}
	if stats.KeyCount != 2 {
		t.Errorf("KeyCount = %d, want 2", stats.KeyCount)
	}
}

func TestSweeper_StatisticsDegradesToDisabled(t *testing.T) {
	sw, _, mr := newTestSweeper(t)

	mr.Close()

	stats := sw.Statistics(context.Background())
	if stats.Status != "disabled" {
		t.Errorf("Status = %q, want disabled", stats.Status)
	}

	if NewSweeper(nil, zerolog.Nop()).Statistics(context.Background()).Status != "disabled" {
		t.Error("nil-client sweeper should report disabled")
	}
}

func TestSweeper_PurgeStaleUnavailable(t *testing.T) {
	sw, _, mr := newTestSweeper(t)
	mr.Close()

	if purged := sw.PurgeStale(context.Background()); purged != 0 {
		t.Errorf("PurgeStale during outage = %d, want 0", purged)
	}
}
