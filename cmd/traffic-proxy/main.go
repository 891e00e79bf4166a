package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/traffic-cache/pkg/cache"
	"github.com/Sternrassler/traffic-cache/pkg/here"
	"github.com/Sternrassler/traffic-cache/pkg/logging"
	"github.com/Sternrassler/traffic-cache/pkg/service"
	"github.com/Sternrassler/traffic-cache/pkg/store"
	"github.com/Sternrassler/traffic-cache/pkg/usagelog"
)

func main() {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
	})
	logger := logging.NewLogger("traffic-proxy")

	port := getEnv("PORT", "8080")
	databaseURL := getEnv("DATABASE_URL", "postgres://localhost:5432/traffic_cache")
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	apiKey := os.Getenv("HERE_API_KEY")
	if apiKey == "" {
		logger.Fatal().Msg("HERE_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable tier.
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	logger.Info().Msg("Database schema ready")

	// Fast tier. The service degrades to durable-only when Redis is
	// unreachable, so a failed ping is a warning, not a startup failure.
	rdb := redis.NewClient(&redis.Options{Addr: redisURL})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", redisURL).Msg("Redis unreachable, fast tier disabled until it recovers")
	} else {
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")
	}

	hereClient, err := here.New(here.Config{
		APIKey:     apiKey,
		TrafficURL: os.Getenv("HERE_TRAFFIC_URL"),
		RoutingURL: os.Getenv("HERE_ROUTING_URL"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	svc, err := service.New(service.Config{
		Upstream: hereClient,
		Durable:  st,
		Fast:     cache.NewFastCache(rdb, logging.NewLogger("fast-cache")),
		Sweeper:  cache.NewSweeper(rdb, logging.NewLogger("sweeper")),
		FlowTTL:  time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create coordinator")
	}

	usage, err := usagelog.NewRecorder(st, usagelog.Config{
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "traffic-api-usage"),
	}, logging.NewLogger("usagelog"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create usage recorder")
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(svc, st, rdb, usage),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting traffic proxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	if err := usage.Close(); err != nil {
		logger.Error().Err(err).Msg("Usage recorder close failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
