package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/traffic-cache/pkg/congestion"
	"github.com/Sternrassler/traffic-cache/pkg/here"
	"github.com/Sternrassler/traffic-cache/pkg/service"
	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// stubUpstream serves a fixed flow sample or a fixed error.
type stubUpstream struct {
	flowErr error
}

func (u *stubUpstream) FetchFlow(_ context.Context, lat, lng float64, _ int) (*here.FlowSample, error) {
	if u.flowErr != nil {
		return nil, u.flowErr
	}
	return &here.FlowSample{
		RoadSegmentID:     "segment_test",
		StartLatitude:     lat,
		StartLongitude:    lng,
		CurrentSpeedKmph:  90,
		FreeFlowSpeedKmph: 100,
		ConfidenceLevel:   0.9,
	}, nil
}

func (u *stubUpstream) FetchIncidents(context.Context, here.Area) ([]traffic.IncidentRecord, error) {
	return nil, &here.Error{Operation: "incidents", StatusCode: 500, Class: here.ErrorClassServer, Message: "boom"}
}

func (u *stubUpstream) FetchRoute(context.Context, []traffic.Waypoint, *time.Time) ([]here.LegSummary, error) {
	return nil, &here.Error{Operation: "route", StatusCode: 500, Class: here.ErrorClassServer, Message: "boom"}
}

// stubStore is an always-empty durable tier.
type stubStore struct{}

func (s *stubStore) FindUnexpiredFlow(context.Context, float64, float64, time.Time) (*traffic.FlowRecord, error) {
	return nil, nil
}

func (s *stubStore) UpsertFlow(_ context.Context, record traffic.FlowRecord) (traffic.FlowRecord, error) {
	return record, nil
}

func (s *stubStore) DeleteExpiredBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *stubStore) UpsertIncidents(context.Context, []traffic.IncidentRecord) error {
	return nil
}

func newTestRouter(t *testing.T, upstream service.Upstream) http.Handler {
	t.Helper()
	svc, err := service.New(service.Config{
		Upstream: upstream,
		Durable:  &stubStore{},
	})
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	return newRouter(svc, nil, nil, nil)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	// Without a Redis handle caching is degraded, not the service.
	if body["redis"] != "unavailable" {
		t.Errorf("redis field = %q, want unavailable", body["redis"])
	}
}

func TestFlowEndpoint_ServesClassifiedRecord(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	req := httptest.NewRequest("GET", "/api/v1/traffic/flow?lat=52.52&lng=13.405", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var record traffic.FlowRecord
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.CongestionLevel != congestion.LevelLow {
		t.Errorf("congestion = %s, want %s", record.CongestionLevel, congestion.LevelLow)
	}
}

func TestFlowEndpoint_MissingParameters(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	tests := []string{
		"/api/v1/traffic/flow",
		"/api/v1/traffic/flow?lat=52.52",
		"/api/v1/traffic/flow?lat=abc&lng=13.405",
		"/api/v1/traffic/flow?lat=91&lng=13.405",
	}

	for _, target := range tests {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestFlowEndpoint_UpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *here.Error
		wantStatus int
	}{
		{
			"rate limited",
			&here.Error{Operation: "flow", StatusCode: 429, Class: here.ErrorClassRateLimit, Message: "quota"},
			http.StatusTooManyRequests,
		},
		{
			"server error",
			&here.Error{Operation: "flow", StatusCode: 500, Class: here.ErrorClassServer, Message: "boom"},
			http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &stubUpstream{flowErr: tt.err})

			req := httptest.NewRequest("GET", "/api/v1/traffic/flow?lat=52.52&lng=13.405", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestIncidentsEndpoint_DegradesToEmptyList(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	req := httptest.NewRequest("GET", "/api/v1/traffic/incidents?lat=52.52&lng=13.405", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (incidents degrade, never fail)", w.Code)
	}

	var body struct {
		Incidents []traffic.IncidentRecord `json:"incidents"`
		Count     int                      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestRouteEndpoint_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"too few waypoints", `{"waypoints": [{"lat": 52.52, "lng": 13.405}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/traffic/route", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	req := httptest.NewRequest("GET", "/api/v1/traffic/cache/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "disabled" {
		t.Errorf("status = %q, want disabled without a fast tier", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubUpstream{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "# HELP") || !strings.Contains(string(body), "# TYPE") {
		t.Error("expected Prometheus format metrics output")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"broker1:9092", 1},
		{"broker1:9092, broker2:9092", 2},
		{"broker1:9092,,broker2:9092", 2},
	}

	for _, tt := range tests {
		if got := splitList(tt.in); len(got) != tt.want {
			t.Errorf("splitList(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
