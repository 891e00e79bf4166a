package here

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Fallback observation served when the provider has no flow data for a
// region. Sparsely surveyed areas are not an error condition.
const (
	fallbackCurrentSpeedKmph  = 50
	fallbackFreeFlowSpeedKmph = 60
	fallbackConfidence        = 0.5
)

// FlowSample is one aggregated flow observation for a point query, before
// congestion classification.
type FlowSample struct {
	RoadSegmentID     string
	StartLatitude     float64
	StartLongitude    float64
	EndLatitude       float64
	EndLongitude      float64
	CurrentSpeedKmph  float64
	FreeFlowSpeedKmph float64
	ConfidenceLevel   float64
	JamFactor         float64

	// Fallback is true when the provider returned no samples and the
	// defined fallback observation was substituted.
	Fallback bool
}

// flowResponse mirrors the provider's flow-by-circle payload shape.
// Pointers distinguish absent values from zeroes, so absent values are
// excluded from the aggregation.
type flowResponse struct {
	Results []struct {
		Location struct {
			Description string `json:"description"`
		} `json:"location"`
		CurrentFlow struct {
			Speed      *float64 `json:"speed"`
			FreeFlow   *float64 `json:"freeFlow"`
			Confidence *float64 `json:"confidence"`
			JamFactor  *float64 `json:"jamFactor"`
		} `json:"currentFlow"`
	} `json:"results"`
}

// FetchFlow retrieves the traffic flow observation nearest to a point
// within the given search radius. Multiple sub-results are aggregated by
// arithmetic mean before classification. Zero results yield the fallback
// observation rather than an error.
func (c *Client) FetchFlow(ctx context.Context, lat, lng float64, radiusMeters int) (*FlowSample, error) {
	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("in", fmt.Sprintf("circle:%s,%s;r=%d", coord(lat), coord(lng), radiusMeters))
	params.Set("locationReferencing", "shape")
	params.Set("units", "metric")

	body, err := c.doGet(ctx, "flow", c.config.TrafficURL+"/flow?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload flowResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Operation: "flow", Class: ErrorClassServer, Message: "malformed flow payload", Err: err}
	}

	if len(payload.Results) == 0 {
		c.logger.Debug().
			Float64("lat", lat).
			Float64("lng", lng).
			Msg("No flow data for region, serving fallback observation")
		return &FlowSample{
			RoadSegmentID:     fallbackSegmentID(lat, lng),
			StartLatitude:     lat,
			StartLongitude:    lng,
			EndLatitude:       lat,
			EndLongitude:      lng,
			CurrentSpeedKmph:  fallbackCurrentSpeedKmph,
			FreeFlowSpeedKmph: fallbackFreeFlowSpeedKmph,
			ConfidenceLevel:   fallbackConfidence,
			Fallback:          true,
		}, nil
	}

	var speeds, freeFlows, confidences, jamFactors mean
	for _, result := range payload.Results {
		speeds.add(result.CurrentFlow.Speed)
		freeFlows.add(result.CurrentFlow.FreeFlow)
		confidences.add(result.CurrentFlow.Confidence)
		jamFactors.add(result.CurrentFlow.JamFactor)
	}

	segmentID := payload.Results[0].Location.Description
	if segmentID == "" {
		segmentID = fallbackSegmentID(lat, lng)
	}

	return &FlowSample{
		RoadSegmentID:     segmentID,
		StartLatitude:     lat,
		StartLongitude:    lng,
		EndLatitude:       lat,
		EndLongitude:      lng,
		CurrentSpeedKmph:  speeds.value(),
		FreeFlowSpeedKmph: freeFlows.value(),
		ConfidenceLevel:   confidences.value(),
		JamFactor:         jamFactors.value(),
	}, nil
}

// mean accumulates an arithmetic mean over present values.
type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.count++
}

func (m *mean) value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func fallbackSegmentID(lat, lng float64) string {
	return "segment_" + strconv.FormatFloat(lat, 'f', 5, 64) + "_" + strconv.FormatFloat(lng, 'f', 5, 64)
}
