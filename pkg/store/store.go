// Package store implements the durable cache tier and usage logging on
// PostgreSQL. Unlike the fast tier, this tier participates in the durable
// record of what was served: its write failures are surfaced to the
// caller (which may still choose to respond) rather than swallowed.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// Store is the durable tier over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindUnexpiredFlow returns the freshest unexpired flow record for a
// location, or nil when no such record exists. Expired records are
// treated as misses; they are removed lazily by DeleteExpiredBefore.
func (s *Store) FindUnexpiredFlow(ctx context.Context, lat, lng float64, now time.Time) (*traffic.FlowRecord, error) {
	query := `
		SELECT cache_id, road_segment_id, start_latitude, start_longitude,
		       end_latitude, end_longitude, current_speed_kmph, free_flow_speed_kmph,
		       confidence_level, congestion_level, travel_time_minutes, distance_km,
		       cached_at, expires_at
		FROM traffic_cache
		WHERE start_latitude = $1 AND start_longitude = $2 AND expires_at > $3
		ORDER BY cached_at DESC
		LIMIT 1
	`

	var r traffic.FlowRecord
	err := s.pool.QueryRow(ctx, query, lat, lng, now).Scan(
		&r.CacheID, &r.RoadSegmentID, &r.StartLatitude, &r.StartLongitude,
		&r.EndLatitude, &r.EndLongitude, &r.CurrentSpeedKmph, &r.FreeFlowSpeedKmph,
		&r.ConfidenceLevel, &r.CongestionLevel, &r.TravelTimeMinutes, &r.DistanceKm,
		&r.CachedAt, &r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find unexpired flow: %w", err)
	}

	return &r, nil
}

// UpsertFlow persists a flow record and returns it with its assigned
// cache identifier. Records are append-only: a fresher fetch inserts a
// new row and supersedes older rows via the ORDER BY in FindUnexpiredFlow.
func (s *Store) UpsertFlow(ctx context.Context, record traffic.FlowRecord) (traffic.FlowRecord, error) {
	if record.CacheID == uuid.Nil {
		record.CacheID = uuid.New()
	}

	query := `
		INSERT INTO traffic_cache (
			cache_id, road_segment_id, start_latitude, start_longitude,
			end_latitude, end_longitude, current_speed_kmph, free_flow_speed_kmph,
			confidence_level, congestion_level, travel_time_minutes, distance_km,
			cached_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		record.CacheID, record.RoadSegmentID, record.StartLatitude, record.StartLongitude,
		record.EndLatitude, record.EndLongitude, record.CurrentSpeedKmph, record.FreeFlowSpeedKmph,
		record.ConfidenceLevel, record.CongestionLevel, record.TravelTimeMinutes, record.DistanceKm,
		record.CachedAt, record.ExpiresAt,
	)
	if err != nil {
		return traffic.FlowRecord{}, fmt.Errorf("postgres: upsert flow: %w", err)
	}

	return record, nil
}

// DeleteExpiredBefore removes flow records cached before the cutoff and
// returns the number of rows removed.
func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM traffic_cache WHERE cached_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired flows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertIncidents persists incident records keyed by the provider-assigned
// incident identifier, so repeated polls of the same region never create
// duplicate rows.
func (s *Store) UpsertIncidents(ctx context.Context, records []traffic.IncidentRecord) error {
	query := `
		INSERT INTO traffic_incidents (
			incident_id, here_incident_id, incident_type, severity, description,
			start_latitude, start_longitude, end_latitude, end_longitude,
			start_time, estimated_end_time, impact_on_traffic, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (here_incident_id) DO UPDATE SET
			severity = EXCLUDED.severity,
			description = EXCLUDED.description,
			estimated_end_time = EXCLUDED.estimated_end_time,
			impact_on_traffic = EXCLUDED.impact_on_traffic,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`

	for _, record := range records {
		if record.IncidentID == uuid.Nil {
			record.IncidentID = uuid.New()
		}

		_, err := s.pool.Exec(ctx, query,
			record.IncidentID, record.HereIncidentID, record.IncidentType, record.Severity,
			record.Description, record.StartLatitude, record.StartLongitude,
			record.EndLatitude, record.EndLongitude,
			record.StartTime, record.EstimatedEndTime, record.ImpactMinutes, record.IsActive,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert incident %s: %w", record.HereIncidentID, err)
		}
	}

	return nil
}

// UsageLog is one API usage record written by the background recorder.
type UsageLog struct {
	Endpoint       string
	Method         string
	StatusCode     int
	ResponseTimeMs int
	ErrorMessage   string
}

// InsertUsageLog persists one usage log entry.
func (s *Store) InsertUsageLog(ctx context.Context, entry UsageLog) error {
	query := `
		INSERT INTO api_usage_logs (
			log_id, api_endpoint, request_type, response_status_code,
			response_time_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`

	_, err := s.pool.Exec(ctx, query,
		uuid.New(), entry.Endpoint, entry.Method, entry.StatusCode,
		entry.ResponseTimeMs, entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert usage log: %w", err)
	}

	return nil
}

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
