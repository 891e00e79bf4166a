// Package traffic defines the domain records served by the traffic cache
// and the input validation applied before any upstream call.
package traffic

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sternrassler/traffic-cache/pkg/congestion"
)

// FlowRecord is one traffic-flow observation for a road segment.
// Records are immutable once created; a fresher fetch supersedes rather
// than mutates an existing record.
type FlowRecord struct {
	CacheID           uuid.UUID        `json:"cache_id"`
	RoadSegmentID     string           `json:"road_segment_id"`
	StartLatitude     float64          `json:"start_latitude"`
	StartLongitude    float64          `json:"start_longitude"`
	EndLatitude       float64          `json:"end_latitude"`
	EndLongitude      float64          `json:"end_longitude"`
	CurrentSpeedKmph  float64          `json:"current_speed_kmph"`
	FreeFlowSpeedKmph float64          `json:"free_flow_speed_kmph"`
	ConfidenceLevel   float64          `json:"confidence_level"`
	CongestionLevel   congestion.Level `json:"congestion_level"`
	TravelTimeMinutes *int             `json:"travel_time_minutes,omitempty"`
	DistanceKm        *float64         `json:"distance_km,omitempty"`
	CachedAt          time.Time        `json:"cached_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
}

// IncidentRecord is one reported traffic incident. HereIncidentID is the
// provider-assigned identifier and acts as the natural key: repeated polls
// of the same region must not persist the same incident twice.
type IncidentRecord struct {
	IncidentID       uuid.UUID  `json:"incident_id"`
	HereIncidentID   string     `json:"here_incident_id"`
	IncidentType     string     `json:"incident_type"`
	Severity         string     `json:"severity"`
	Description      string     `json:"description"`
	StartLatitude    float64    `json:"start_latitude"`
	StartLongitude   float64    `json:"start_longitude"`
	EndLatitude      *float64   `json:"end_latitude,omitempty"`
	EndLongitude     *float64   `json:"end_longitude,omitempty"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	EstimatedEndTime *time.Time `json:"estimated_end_time,omitempty"`
	// ImpactMinutes is the estimated delay caused by the incident.
	ImpactMinutes int  `json:"impact_on_traffic"`
	IsActive      bool `json:"is_active"`
}

// Waypoint is one point in an ordered route request.
type Waypoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// RouteLeg is the summary of one point-to-point segment of a route.
type RouteLeg struct {
	Origin              Waypoint         `json:"origin"`
	Destination         Waypoint         `json:"destination"`
	DistanceKm          float64          `json:"distance_km"`
	DurationMinutes     int              `json:"duration_minutes"`
	TrafficDelayMinutes int              `json:"traffic_delay_minutes"`
	Polyline            string           `json:"polyline"`
	CongestionLevel     congestion.Level `json:"congestion_level"`
}

// CongestionSummary tallies legs per congestion level.
type CongestionSummary struct {
	Low      int `json:"low"`
	Moderate int `json:"moderate"`
	High     int `json:"high"`
	Severe   int `json:"severe"`
	Unknown  int `json:"unknown"`
}

// Add counts one leg at the given level.
func (s *CongestionSummary) Add(level congestion.Level) {
	switch level {
	case congestion.LevelLow:
		s.Low++
	case congestion.LevelModerate:
		s.Moderate++
	case congestion.LevelHigh:
		s.High++
	case congestion.LevelSevere:
		s.Severe++
	default:
		s.Unknown++
	}
}

// RouteResult is an aggregated multi-leg route. It is never partially
// built: either every leg completed or the whole request failed.
type RouteResult struct {
	TotalDistanceKm      float64           `json:"total_distance_km"`
	TotalTimeMinutes     int               `json:"total_time_minutes"`
	TrafficDelayMinutes  int               `json:"traffic_delay_minutes"`
	CongestionSummary    CongestionSummary `json:"congestion_summary"`
	Legs                 []RouteLeg        `json:"legs"`
	DepartureTime        *time.Time        `json:"departure_time,omitempty"`
}
