package here

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// incidentsResponse mirrors the provider's incidents payload shape.
type incidentsResponse struct {
	Results []struct {
		IncidentDetails struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Criticality string `json:"criticality"`
			Description struct {
				Value string `json:"value"`
			} `json:"description"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		} `json:"incidentDetails"`
		Location struct {
			Shape struct {
				Links []struct {
					Points []struct {
						Lat float64 `json:"lat"`
						Lng float64 `json:"lng"`
					} `json:"points"`
				} `json:"links"`
			} `json:"shape"`
		} `json:"location"`
	} `json:"results"`
}

// criticalityImpactMinutes estimates incident delay from the provider's
// criticality label. The provider reports no delay figure directly.
var criticalityImpactMinutes = map[string]int{
	"critical": 30,
	"major":    20,
	"minor":    10,
	"low":      5,
}

// FetchIncidents retrieves incidents for an area. Incident coverage is
// regionally incomplete: a client-error response (other than a rate limit)
// means "no incidents available for this region" and degrades to an empty
// list instead of failing.
func (c *Client) FetchIncidents(ctx context.Context, area Area) ([]traffic.IncidentRecord, error) {
	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("in", area.query)
	params.Set("locationReferencing", "shape")

	body, err := c.doGet(ctx, "incidents", c.config.TrafficURL+"/incidents?"+params.Encode())
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) && herr.Class == ErrorClassClient {
			c.logger.Info().
				Str("area", area.query).
				Int("status", herr.StatusCode).
				Msg("Incident coverage gap for region, returning empty list")
			return []traffic.IncidentRecord{}, nil
		}
		return nil, err
	}

	var payload incidentsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Operation: "incidents", Class: ErrorClassServer, Message: "malformed incidents payload", Err: err}
	}

	now := time.Now()
	records := make([]traffic.IncidentRecord, 0, len(payload.Results))

	for _, result := range payload.Results {
		details := result.IncidentDetails
		if details.ID == "" {
			continue
		}

		record := traffic.IncidentRecord{
			IncidentID:     uuid.New(),
			HereIncidentID: details.ID,
			IncidentType:   details.Type,
			Severity:       details.Criticality,
			Description:    details.Description.Value,
			ImpactMinutes:  criticalityImpactMinutes[details.Criticality],
			IsActive:       true,
		}

		if start, err := time.Parse(time.RFC3339, details.StartTime); err == nil {
			record.StartTime = &start
		}
		if end, err := time.Parse(time.RFC3339, details.EndTime); err == nil {
			record.EstimatedEndTime = &end
			record.IsActive = end.After(now)
		}

		if links := result.Location.Shape.Links; len(links) > 0 && len(links[0].Points) > 0 {
			first := links[0].Points[0]
			record.StartLatitude = first.Lat
			record.StartLongitude = first.Lng

			last := links[len(links)-1]
			if n := len(last.Points); n > 0 {
				endLat := last.Points[n-1].Lat
				endLng := last.Points[n-1].Lng
				record.EndLatitude = &endLat
				record.EndLongitude = &endLng
			}
		}

		records = append(records, record)
	}

	return records, nil
}
