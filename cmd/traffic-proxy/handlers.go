package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/traffic-cache/pkg/logging"
	"github.com/Sternrassler/traffic-cache/pkg/service"
	"github.com/Sternrassler/traffic-cache/pkg/store"
	"github.com/Sternrassler/traffic-cache/pkg/traffic"
	"github.com/Sternrassler/traffic-cache/pkg/usagelog"
)

// api bundles the handler dependencies.
type api struct {
	svc   *service.Service
	store *store.Store
	rdb   *redis.Client
	usage *usagelog.Recorder
}

func newRouter(svc *service.Service, st *store.Store, rdb *redis.Client, usage *usagelog.Recorder) http.Handler {
	a := &api{svc: svc, store: st, rdb: rdb, usage: usage}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", a.handleIndex)
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/traffic", func(r chi.Router) {
		r.Use(a.recordUsage)
		r.Get("/flow", a.handleFlow)
		r.Get("/incidents", a.handleIncidents)
		r.Post("/route", a.handleRoute)
		r.Delete("/cache", a.handlePurgeCache)
		r.Get("/cache/stats", a.handleCacheStats)
	})

	return r
}

// recordUsage queues a usage entry per request. Recording is
// fire-and-forget and never delays the response.
func (a *api) recordUsage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if a.usage != nil {
			a.usage.Record(store.UsageLog{
				Endpoint:       r.URL.Path,
				Method:         r.Method,
				StatusCode:     ww.Status(),
				ResponseTimeMs: int(time.Since(start).Milliseconds()),
			})
		}
	})
}

func (a *api) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "traffic-cache",
		"endpoints": []string{
			"GET /api/v1/traffic/flow",
			"GET /api/v1/traffic/incidents",
			"POST /api/v1/traffic/route",
			"DELETE /api/v1/traffic/cache",
			"GET /api/v1/traffic/cache/stats",
			"GET /health",
			"GET /metrics",
		},
	})
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
	code := http.StatusOK

	if a.store != nil {
		if err := a.store.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	// Redis being down only degrades caching, never readiness.
	if a.rdb == nil || a.rdb.Ping(r.Context()).Err() != nil {
		status["redis"] = "unavailable"
	}

	writeJSON(w, code, status)
}

func (a *api) handleFlow(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius := queryInt(r, "radius", 0)
	forceRefresh := r.URL.Query().Get("force_refresh") == "true"

	record, err := a.svc.GetFlow(r.Context(), lat, lng, radius, forceRefresh)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (a *api) handleIncidents(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius := queryInt(r, "radius", 0)

	records := a.svc.GetIncidents(r.Context(), lat, lng, radius)

	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": records,
		"count":     len(records),
	})
}

// routeRequest is the POST /route payload.
type routeRequest struct {
	Waypoints     []traffic.Waypoint `json:"waypoints"`
	DepartureTime *time.Time         `json:"departure_time,omitempty"`
}

func (a *api) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	result, err := a.svc.GetRoute(r.Context(), req.Waypoints, req.DepartureTime)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *api) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	olderThanMinutes := queryInt(r, "older_than_minutes", 60)
	if olderThanMinutes < 0 {
		writeError(w, http.StatusBadRequest, "older_than_minutes must not be negative")
		return
	}

	count, err := a.svc.PurgeCache(r.Context(), time.Duration(olderThanMinutes)*time.Minute)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache purge failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"purged":             count,
		"older_than_minutes": olderThanMinutes,
	})
}

func (a *api) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.CacheStatistics(r.Context()))
}

// writeServiceError maps coordinator errors to HTTP statuses: validation
// to 400, upstream rate limits to 429, everything else to 502.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case service.IsRateLimited(err):
		writeError(w, http.StatusTooManyRequests, "upstream rate limit exceeded")
	default:
		writeError(w, http.StatusBadGateway, "upstream request failed: "+err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := logging.NewLogger("traffic-proxy")
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryFloat(r *http.Request, name string) (float64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, &traffic.ValidationError{Field: name, Message: "required query parameter missing"}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &traffic.ValidationError{Field: name, Message: "not a number: " + value}
	}
	return f, nil
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	if value := r.URL.Query().Get(name); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
