package store

import (
	"context"
	"fmt"
)

// schemaStatements creates the durable tier's tables and indexes. Kept as
// idempotent DDL executed at startup; there is no migration machinery.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS traffic_cache (
		cache_id UUID PRIMARY KEY,
		road_segment_id VARCHAR(255) NOT NULL,
		start_latitude NUMERIC(10, 8) NOT NULL,
		start_longitude NUMERIC(11, 8) NOT NULL,
		end_latitude NUMERIC(10, 8) NOT NULL,
		end_longitude NUMERIC(11, 8) NOT NULL,
		current_speed_kmph DOUBLE PRECISION,
		free_flow_speed_kmph DOUBLE PRECISION,
		confidence_level NUMERIC(3, 2),
		congestion_level VARCHAR(20),
		travel_time_minutes INTEGER,
		distance_km NUMERIC(8, 3),
		cached_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_cache_location ON traffic_cache (start_latitude, start_longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_cache_expires_at ON traffic_cache (expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_cache_road_segment ON traffic_cache (road_segment_id)`,

	`CREATE TABLE IF NOT EXISTS traffic_incidents (
		incident_id UUID PRIMARY KEY,
		here_incident_id VARCHAR(255) UNIQUE NOT NULL,
		incident_type VARCHAR(50) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		description TEXT,
		start_latitude NUMERIC(10, 8) NOT NULL,
		start_longitude NUMERIC(11, 8) NOT NULL,
		end_latitude NUMERIC(10, 8),
		end_longitude NUMERIC(11, 8),
		start_time TIMESTAMPTZ,
		estimated_end_time TIMESTAMPTZ,
		impact_on_traffic INTEGER,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_incidents_location ON traffic_incidents (start_latitude, start_longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_incidents_severity ON traffic_incidents (severity)`,

	`CREATE TABLE IF NOT EXISTS api_usage_logs (
		log_id UUID PRIMARY KEY,
		api_endpoint VARCHAR(255) NOT NULL,
		request_type VARCHAR(10) NOT NULL,
		response_status_code INTEGER,
		response_time_ms INTEGER,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_usage_logs_endpoint ON api_usage_logs (api_endpoint, created_at)`,
}

// EnsureSchema creates the durable tier's tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}
