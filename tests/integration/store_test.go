package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/traffic-cache/pkg/congestion"
	"github.com/Sternrassler/traffic-cache/pkg/store"
	"github.com/Sternrassler/traffic-cache/pkg/traffic"
)

// setupPostgres creates a Postgres container and a schema-initialized store.
func setupPostgres(t *testing.T) (*store.Store, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "traffic",
			"POSTGRES_PASSWORD": "traffic",
			"POSTGRES_DB":       "traffic_cache",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://traffic:traffic@%s:%s/traffic_cache", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return st, cleanup
}

func TestStore_FlowLifecycle(t *testing.T) {
	st, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	record := traffic.FlowRecord{
		RoadSegmentID:     "Unter den Linden",
		StartLatitude:     52.52,
		StartLongitude:    13.405,
		EndLatitude:       52.53,
		EndLongitude:      13.415,
		CurrentSpeedKmph:  30,
		FreeFlowSpeedKmph: 50,
		ConfidenceLevel:   0.9,
		CongestionLevel:   congestion.LevelModerate,
		CachedAt:          now,
		ExpiresAt:         now.Add(5 * time.Minute),
	}

	stored, err := st.UpsertFlow(ctx, record)
	if err != nil {
		t.Fatalf("UpsertFlow: %v", err)
	}

	found, err := st.FindUnexpiredFlow(ctx, 52.52, 13.405, now)
	if err != nil {
		t.Fatalf("FindUnexpiredFlow: %v", err)
	}
	if found == nil {
		t.Fatal("unexpired record not found")
	}
	if found.CacheID != stored.CacheID {
		t.Errorf("cache id = %s, want %s", found.CacheID, stored.CacheID)
	}
	if found.CongestionLevel != congestion.LevelModerate {
		t.Errorf("congestion = %s, want %s", found.CongestionLevel, congestion.LevelModerate)
	}

	// An expired record is a miss.
	if found, err := st.FindUnexpiredFlow(ctx, 52.52, 13.405, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("FindUnexpiredFlow: %v", err)
	} else if found != nil {
		t.Error("expired record served as a hit")
	}

	// Other locations are misses.
	if found, err := st.FindUnexpiredFlow(ctx, 48.137, 11.576, now); err != nil {
		t.Fatalf("FindUnexpiredFlow: %v", err)
	} else if found != nil {
		t.Error("record served for the wrong location")
	}
}

func TestStore_FreshestRecordWins(t *testing.T) {
	st, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	older := traffic.FlowRecord{
		RoadSegmentID:   "segment",
		StartLatitude:   52.52,
		StartLongitude:  13.405,
		CongestionLevel: congestion.LevelLow,
		CachedAt:        now.Add(-2 * time.Minute),
		ExpiresAt:       now.Add(3 * time.Minute),
	}
	newer := older
	newer.CongestionLevel = congestion.LevelSevere
	newer.CachedAt = now

	if _, err := st.UpsertFlow(ctx, older); err != nil {
		t.Fatalf("UpsertFlow older: %v", err)
	}
	if _, err := st.UpsertFlow(ctx, newer); err != nil {
		t.Fatalf("UpsertFlow newer: %v", err)
	}

	found, err := st.FindUnexpiredFlow(ctx, 52.52, 13.405, now)
	if err != nil {
		t.Fatalf("FindUnexpiredFlow: %v", err)
	}
	if found == nil {
		t.Fatal("no record found")
	}
	if found.CongestionLevel != congestion.LevelSevere {
		t.Errorf("congestion = %s, want the freshest record's %s", found.CongestionLevel, congestion.LevelSevere)
	}
}

func TestStore_DeleteExpiredBefore(t *testing.T) {
	st, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	old := traffic.FlowRecord{
		RoadSegmentID:  "old",
		StartLatitude:  52.52,
		StartLongitude: 13.405,
		CachedAt:       now.Add(-2 * time.Hour),
		ExpiresAt:      now.Add(-time.Hour),
	}
	fresh := traffic.FlowRecord{
		RoadSegmentID:  "fresh",
		StartLatitude:  52.52,
		StartLongitude: 13.405,
		CachedAt:       now,
		ExpiresAt:      now.Add(5 * time.Minute),
	}

	if _, err := st.UpsertFlow(ctx, old); err != nil {
		t.Fatalf("UpsertFlow old: %v", err)
	}
	if _, err := st.UpsertFlow(ctx, fresh); err != nil {
		t.Fatalf("UpsertFlow fresh: %v", err)
	}

	count, err := st.DeleteExpiredBefore(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredBefore: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted = %d, want 1", count)
	}

	found, err := st.FindUnexpiredFlow(ctx, 52.52, 13.405, now)
	if err != nil {
		t.Fatalf("FindUnexpiredFlow: %v", err)
	}
	if found == nil || found.RoadSegmentID != "fresh" {
		t.Error("fresh record must survive the purge")
	}
}

func TestStore_IncidentsUpsertByNaturalKey(t *testing.T) {
	st, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	end := time.Now().UTC().Add(time.Hour)

	first := []traffic.IncidentRecord{
		{HereIncidentID: "HERE-1", IncidentType: "accident", Severity: "major", StartLatitude: 52.52, StartLongitude: 13.405, ImpactMinutes: 20, IsActive: true, EstimatedEndTime: &end},
		{HereIncidentID: "HERE-2", IncidentType: "construction", Severity: "minor", StartLatitude: 52.53, StartLongitude: 13.415, ImpactMinutes: 10, IsActive: true},
	}
	if err := st.UpsertIncidents(ctx, first); err != nil {
		t.Fatalf("UpsertIncidents: %v", err)
	}

	// A repeated poll updates instead of duplicating.
	second := []traffic.IncidentRecord{
		{HereIncidentID: "HERE-1", IncidentType: "accident", Severity: "critical", StartLatitude: 52.52, StartLongitude: 13.405, ImpactMinutes: 30, IsActive: false},
	}
	if err := st.UpsertIncidents(ctx, second); err != nil {
		t.Fatalf("UpsertIncidents repeat: %v", err)
	}
}

func TestStore_UsageLogAndHealth(t *testing.T) {
	st, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()

	if err := st.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	entries := []store.UsageLog{
		{Endpoint: "/api/v1/traffic/flow", Method: "GET", StatusCode: 200, ResponseTimeMs: 42},
		{Endpoint: "/api/v1/traffic/route", Method: "POST", StatusCode: 502, ResponseTimeMs: 900, ErrorMessage: "upstream failed"},
	}
	for _, entry := range entries {
		if err := st.InsertUsageLog(ctx, entry); err != nil {
			t.Fatalf("InsertUsageLog: %v", err)
		}
	}
}
