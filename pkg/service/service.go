// Package service implements the cache coordinator: the tiered
// lookup/populate sequence around the upstream client, the fast cache,
// and the durable store.
//
// Per request the coordinator walks CheckFast -> CheckDurable ->
// ColdFetch -> Classify -> Persist -> Respond. There is no cross-request
// coalescing of identical cold fetches: two simultaneous misses for the
// same key may both call upstream, and the racing writers resolve by last
// write wins, which is acceptable because both compute the same value
// within the TTL window.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/traffic-cache/pkg/cache"
	"github.com/Sternrassler/traffic-cache/pkg/congestion"
	"github.com/Sternrassler/traffic-cache/pkg/here"
	"github.com/Sternrassler/traffic-cache/pkg/logging"
	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// Upstream is the provider client consumed by the coordinator.
type Upstream interface {
	FetchFlow(ctx context.Context, lat, lng float64, radiusMeters int) (*here.FlowSample, error)
	FetchIncidents(ctx context.Context, area here.Area) ([]traffic.IncidentRecord, error)
	FetchRoute(ctx context.Context, waypoints []traffic.Waypoint, departure *time.Time) ([]here.LegSummary, error)
}

// FlowStore is the durable cache tier consumed by the coordinator.
type FlowStore interface {
	FindUnexpiredFlow(ctx context.Context, lat, lng float64, now time.Time) (*traffic.FlowRecord, error)
	UpsertFlow(ctx context.Context, record traffic.FlowRecord) (traffic.FlowRecord, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	UpsertIncidents(ctx context.Context, records []traffic.IncidentRecord) error
}

// Config holds the coordinator's dependencies and policy. Upstream and
// Durable are required; Fast and Sweeper degrade gracefully when absent.
type Config struct {
	Upstream Upstream
	Durable  FlowStore
	Fast     *cache.FastCache
	Sweeper  *cache.Sweeper

	// FlowTTL is the cache window for flow and incident results,
	// applied to both tiers anchored to the same observation timestamp.
	FlowTTL time.Duration
}

// DefaultFlowTTL is the cache window used when none is configured.
const DefaultFlowTTL = 5 * time.Minute

// Service coordinates the two cache tiers and the upstream client. Safe
// for concurrent use; all handles are shared and read-only after New.
type Service struct {
	upstream Upstream
	durable  FlowStore
	fast     *cache.FastCache
	sweeper  *cache.Sweeper
	flowTTL  time.Duration
	logger   zerolog.Logger
}

// New creates a coordinator.
func New(cfg Config) (*Service, error) {
	if cfg.Upstream == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if cfg.Durable == nil {
		return nil, fmt.Errorf("durable store is required")
	}

	logger := logging.NewLogger("coordinator")

	if cfg.Fast == nil {
		cfg.Fast = cache.NewFastCache(nil, logger)
	}
	if cfg.Sweeper == nil {
		cfg.Sweeper = cache.NewSweeper(nil, logger)
	}
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = DefaultFlowTTL
	}

	return &Service{
		upstream: cfg.Upstream,
		durable:  cfg.Durable,
		fast:     cfg.Fast,
		sweeper:  cfg.Sweeper,
		flowTTL:  cfg.FlowTTL,
		logger:   logger,
	}, nil
}

// GetFlow serves the flow record for a location, walking the tiered
// lookup sequence. ForceRefresh bypasses both cache checks and always
// cold-fetches.
func (s *Service) GetFlow(ctx context.Context, lat, lng float64, radiusMeters int, forceRefresh bool) (*traffic.FlowRecord, error) {
	if err := traffic.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if radiusMeters == 0 {
		radiusMeters = traffic.DefaultRadiusMeters
	}
	if err := traffic.ValidateRadius(radiusMeters); err != nil {
		return nil, err
	}

	key := cache.FlowKey(lat, lng, radiusMeters)

	if !forceRefresh {
		// CheckFast: values are stored already classified, so a hit
		// goes straight to Respond.
		if entry := s.fast.Get(ctx, key); entry != nil {
			var record traffic.FlowRecord
			if err := entry.Decode(&record); err == nil {
				cache.CacheHits.WithLabelValues("fast").Inc()
				s.logger.Debug().Str("key", key.String()).Msg("Fast cache hit")
				return &record, nil
			}
		}

		// CheckDurable: an unexpired record is promoted into the fast
		// tier (best-effort) and served.
		record, err := s.durable.FindUnexpiredFlow(ctx, lat, lng, time.Now())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Durable tier lookup failed, falling through to cold fetch")
		} else if record != nil {
			cache.CacheHits.WithLabelValues("durable").Inc()
			s.logger.Debug().Str("key", key.String()).Msg("Durable cache hit")
			s.promote(ctx, key, record)
			return record, nil
		}
	}

	cache.CacheMisses.Inc()
	return s.coldFetchFlow(ctx, key, lat, lng, radiusMeters)
}

// coldFetchFlow executes ColdFetch -> Classify -> Persist -> Respond.
func (s *Service) coldFetchFlow(ctx context.Context, key cache.Key, lat, lng float64, radiusMeters int) (*traffic.FlowRecord, error) {
	sample, err := s.upstream.FetchFlow(ctx, lat, lng, radiusMeters)
	if err != nil {
		// Unrecoverable: propagate the classified failure without
		// touching either tier.
		return nil, err
	}

	now := time.Now()
	record := traffic.FlowRecord{
		CacheID:           uuid.New(),
		RoadSegmentID:     sample.RoadSegmentID,
		StartLatitude:     sample.StartLatitude,
		StartLongitude:    sample.StartLongitude,
		EndLatitude:       sample.EndLatitude,
		EndLongitude:      sample.EndLongitude,
		CurrentSpeedKmph:  sample.CurrentSpeedKmph,
		FreeFlowSpeedKmph: sample.FreeFlowSpeedKmph,
		ConfidenceLevel:   sample.ConfidenceLevel,
		CongestionLevel:   congestion.Classify(sample.CurrentSpeedKmph, sample.FreeFlowSpeedKmph),
		CachedAt:          now,
		ExpiresAt:         now.Add(s.flowTTL),
	}

	// Write-through to both tiers. A durable write failure degrades
	// caching, never the response.
	stored, err := s.durable.UpsertFlow(ctx, record)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Durable tier write failed, serving uncached record")
	} else {
		record = stored
	}

	s.writeFast(ctx, key, &record)

	return &record, nil
}

// promote writes a durable-tier hit into the fast tier, best-effort,
// keeping the record's remaining expiry window.
func (s *Service) promote(ctx context.Context, key cache.Key, record *traffic.FlowRecord) {
	entry, err := cache.NewEntry(record, record.CachedAt, record.ExpiresAt)
	if err != nil {
		return
	}
	s.fast.Set(ctx, key, entry)
}

// writeFast stores a freshly built record in the fast tier, best-effort.
func (s *Service) writeFast(ctx context.Context, key cache.Key, record *traffic.FlowRecord) {
	entry, err := cache.NewEntry(record, record.CachedAt, record.ExpiresAt)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Fast tier entry build failed")
		return
	}
	s.fast.Set(ctx, key, entry)
}

// GetIncidents serves incidents for a circular area. This operation never
// fails: any upstream or validation problem degrades to an empty list
// with the diagnostic logged, because incident coverage is known to be
// regionally incomplete.
func (s *Service) GetIncidents(ctx context.Context, lat, lng float64, radiusMeters int) []traffic.IncidentRecord {
	if radiusMeters == 0 {
		radiusMeters = traffic.DefaultRadiusMeters
	}
	if err := traffic.ValidateCoordinates(lat, lng); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid incidents query, returning empty list")
		return []traffic.IncidentRecord{}
	}
	if err := traffic.ValidateRadius(radiusMeters); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid incidents query, returning empty list")
		return []traffic.IncidentRecord{}
	}

	key := cache.IncidentsKey(lat, lng, radiusMeters)

	if entry := s.fast.Get(ctx, key); entry != nil {
		var records []traffic.IncidentRecord
		if err := entry.Decode(&records); err == nil {
			cache.CacheHits.WithLabelValues("fast").Inc()
			return records
		}
	}

	records, err := s.upstream.FetchIncidents(ctx, here.Circle(lat, lng, radiusMeters))
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lng", lng).
			Msg("Incidents fetch failed, returning empty list")
		return []traffic.IncidentRecord{}
	}

	// Persist by natural key so repeated polls never duplicate rows.
	if len(records) > 0 {
		if err := s.durable.UpsertIncidents(ctx, records); err != nil {
			s.logger.Error().Err(err).Msg("Incident persistence failed")
		}
	}

	now := time.Now()
	if entry, err := cache.NewEntry(records, now, now.Add(s.flowTTL)); err == nil {
		s.fast.Set(ctx, key, entry)
	}

	return records
}

// Heuristic delay model: heavily congested legs add delay on top of the
// upstream's own figure, and the larger of the two is reported.
const (
	legBaseMinutes    = 10
	highDelayFactor   = 1.5
	severeDelayFactor = 2.0
)

// GetRoute fetches a multi-leg route and annotates each leg with a
// congestion level obtained through the cached flow pipeline. Leg route
// fetches are atomic: one leg's unrecoverable failure fails the whole
// route. Per-leg congestion lookups are best-effort and tally UNKNOWN on
// failure.
func (s *Service) GetRoute(ctx context.Context, waypoints []traffic.Waypoint, departure *time.Time) (*traffic.RouteResult, error) {
	if err := traffic.ValidateWaypoints(waypoints); err != nil {
		return nil, err
	}

	legs, err := s.upstream.FetchRoute(ctx, waypoints, departure)
	if err != nil {
		return nil, err
	}

	result := &traffic.RouteResult{
		Legs:          make([]traffic.RouteLeg, 0, len(legs)),
		DepartureTime: departure,
	}

	upstreamDelay := 0
	heuristicDelay := 0

	for _, leg := range legs {
		routeLeg := traffic.RouteLeg{
			Origin:              leg.Origin,
			Destination:         leg.Destination,
			DistanceKm:          leg.DistanceKm,
			DurationMinutes:     leg.DurationMinutes,
			TrafficDelayMinutes: leg.TrafficDelayMinutes,
			Polyline:            leg.Polyline,
			CongestionLevel:     congestion.LevelUnknown,
		}

		if record, err := s.GetFlow(ctx, leg.Origin.Latitude, leg.Origin.Longitude, traffic.DefaultRadiusMeters, false); err != nil {
			s.logger.Warn().Err(err).Msg("Leg congestion lookup failed, tallying unknown")
		} else {
			routeLeg.CongestionLevel = record.CongestionLevel
		}

		switch routeLeg.CongestionLevel {
		case congestion.LevelHigh:
			heuristicDelay += int(legBaseMinutes * (highDelayFactor - 1))
		case congestion.LevelSevere:
			heuristicDelay += int(legBaseMinutes * (severeDelayFactor - 1))
		}

		result.TotalDistanceKm += leg.DistanceKm
		result.TotalTimeMinutes += leg.DurationMinutes
		upstreamDelay += leg.TrafficDelayMinutes
		result.CongestionSummary.Add(routeLeg.CongestionLevel)
		result.Legs = append(result.Legs, routeLeg)
	}

	result.TrafficDelayMinutes = upstreamDelay
	if heuristicDelay > upstreamDelay {
		result.TrafficDelayMinutes = heuristicDelay
	}

	return result, nil
}

// PurgeCache removes durable-tier records cached before now-olderThan and
// sweeps stale fast-tier keys, returning the total number of purged
// entries.
func (s *Service) PurgeCache(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	count, err := s.durable.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	cache.SweeperPurged.WithLabelValues("durable").Add(float64(count))

	count += int64(s.sweeper.PurgeStale(ctx))

	s.logger.Info().Int64("count", count).Dur("older_than", olderThan).Msg("Cache purge complete")
	return count, nil
}

// CacheStatistics returns a read-only snapshot of the fast tier. Reports
// a disabled status instead of failing when the tier is unreachable.
func (s *Service) CacheStatistics(ctx context.Context) cache.Stats {
	return s.sweeper.Statistics(ctx)
}
