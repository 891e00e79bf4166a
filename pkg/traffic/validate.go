package traffic

import "fmt"

// Request parameter bounds. Radius bounds follow the provider's circle
// query limits; coordinate bounds are WGS84.
const (
	MinRadiusMeters     = 100
	MaxRadiusMeters     = 5000
	DefaultRadiusMeters = 1000

	MinRouteWaypoints = 2
)

// ValidationError reports malformed caller input. Requests failing
// validation are rejected before any upstream call is made.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateCoordinates checks that a latitude/longitude pair is in range.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("latitude %v out of range [-90, 90]", lat)}
	}
	if lng < -180 || lng > 180 {
		return &ValidationError{Field: "lng", Message: fmt.Sprintf("longitude %v out of range [-180, 180]", lng)}
	}
	return nil
}

// ValidateRadius checks that a search radius is within provider limits.
func ValidateRadius(radius int) error {
	if radius < MinRadiusMeters || radius > MaxRadiusMeters {
		return &ValidationError{
			Field:   "radius",
			Message: fmt.Sprintf("radius %d out of range [%d, %d]", radius, MinRadiusMeters, MaxRadiusMeters),
		}
	}
	return nil
}

// ValidateWaypoints checks that a route request has enough in-range waypoints.
func ValidateWaypoints(waypoints []Waypoint) error {
	if len(waypoints) < MinRouteWaypoints {
		return &ValidationError{
			Field:   "waypoints",
			Message: fmt.Sprintf("at least %d waypoints required, got %d", MinRouteWaypoints, len(waypoints)),
		}
	}
	for i, wp := range waypoints {
		if err := ValidateCoordinates(wp.Latitude, wp.Longitude); err != nil {
			return &ValidationError{
				Field:   "waypoints",
				Message: fmt.Sprintf("waypoint %d: %v", i, err),
			}
		}
	}
	return nil
}
