package here

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// LegSummary is the upstream summary of one route leg.
type LegSummary struct {
	Origin              traffic.Waypoint
	Destination         traffic.Waypoint
	DistanceKm          float64
	DurationMinutes     int
	TrafficDelayMinutes int
	Polyline            string
}

// routeResponse mirrors the provider's routing payload shape.
type routeResponse struct {
	Routes []struct {
		Sections []struct {
			Summary struct {
				Length       int `json:"length"`
				Duration     int `json:"duration"`
				TrafficDelay int `json:"trafficDelay"`
			} `json:"summary"`
			Polyline string `json:"polyline"`
		} `json:"sections"`
	} `json:"routes"`
}

// FetchRoute fetches a multi-leg route as N-1 consecutive leg calls for N
// waypoints. Legs are fetched in order with a context check between calls,
// so a caller's disconnection aborts the remaining legs promptly. Any
// leg's failure fails the whole route; partial routes are never returned.
func (c *Client) FetchRoute(ctx context.Context, waypoints []traffic.Waypoint, departure *time.Time) ([]LegSummary, error) {
	if len(waypoints) < traffic.MinRouteWaypoints {
		return nil, &traffic.ValidationError{
			Field:   "waypoints",
			Message: fmt.Sprintf("at least %d waypoints required, got %d", traffic.MinRouteWaypoints, len(waypoints)),
		}
	}

	legCount := len(waypoints) - 1
	legs := make([]LegSummary, 0, legCount)

	for i := 0; i < legCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("route aborted before leg %d/%d: %w", i+1, legCount, err)
		}

		leg, err := c.fetchRouteLeg(ctx, waypoints[i], waypoints[i+1], departure)
		if err != nil {
			return nil, fmt.Errorf("route leg %d/%d: %w", i+1, legCount, err)
		}

		legs = append(legs, *leg)
	}

	return legs, nil
}

// fetchRouteLeg fetches one origin-to-destination leg.
func (c *Client) fetchRouteLeg(ctx context.Context, origin, destination traffic.Waypoint, departure *time.Time) (*LegSummary, error) {
	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("transportMode", "car")
	params.Set("origin", coord(origin.Latitude)+","+coord(origin.Longitude))
	params.Set("destination", coord(destination.Latitude)+","+coord(destination.Longitude))
	params.Set("return", "summary,polyline,travelSummary")
	if departure != nil {
		params.Set("departureTime", departure.Format(time.RFC3339))
	} else {
		params.Set("departureTime", "now")
	}

	body, err := c.doGet(ctx, "route", c.config.RoutingURL+"/routes?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload routeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Operation: "route", Class: ErrorClassServer, Message: "malformed route payload", Err: err}
	}

	if len(payload.Routes) == 0 || len(payload.Routes[0].Sections) == 0 {
		return nil, &Error{Operation: "route", Class: ErrorClassServer, Message: "empty route response"}
	}

	leg := &LegSummary{
		Origin:      origin,
		Destination: destination,
	}

	lengthMeters := 0
	durationSeconds := 0
	delaySeconds := 0
	for _, section := range payload.Routes[0].Sections {
		lengthMeters += section.Summary.Length
		durationSeconds += section.Summary.Duration
		delaySeconds += section.Summary.TrafficDelay
	}

	leg.DistanceKm = float64(lengthMeters) / 1000
	leg.DurationMinutes = durationSeconds / 60
	leg.TrafficDelayMinutes = delaySeconds / 60
	leg.Polyline = payload.Routes[0].Sections[0].Polyline

	return leg, nil
}
