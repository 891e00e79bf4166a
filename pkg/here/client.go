// Package here provides the client for the upstream traffic provider.
// It issues exactly three operation types (flow-by-circle, incidents-by-area,
// route legs) with a uniform resilience policy: bounded retry with
// exponential backoff, and rate-limit responses distinguished from all
// other failures.
package here

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/traffic-cache/pkg/logging"
)

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates against the provider (required).
	APIKey string

	// TrafficURL is the base URL of the traffic API (flow, incidents).
	TrafficURL string

	// RoutingURL is the base URL of the routing API.
	RoutingURL string

	// Timeout bounds each individual upstream call, not a logical
	// operation as a whole.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// Retry configures the backoff policy shared by all operations.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:     apiKey,
		TrafficURL: "https://data.traffic.hereapi.com/v7",
		RoutingURL: "https://router.hereapi.com/v8",
		Timeout:    10 * time.Second,
		UserAgent:  "traffic-cache/1.0",
		Retry:      DefaultRetryConfig(),
	}
}

// Client is the upstream provider client. It is safe for concurrent use;
// construct one at startup and share it across requests.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new provider client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	defaults := DefaultConfig(cfg.APIKey)
	if cfg.TrafficURL == "" {
		cfg.TrafficURL = defaults.TrafficURL
	}
	if cfg.RoutingURL == "" {
		cfg.RoutingURL = defaults.RoutingURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = defaults.Retry
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("here-client"),
	}, nil
}

// Area describes a spatial query area for incident lookups.
type Area struct {
	query string
}

// Circle builds a point-plus-radius area.
func Circle(lat, lng float64, radiusMeters int) Area {
	return Area{query: fmt.Sprintf("circle:%s,%s;r=%d", coord(lat), coord(lng), radiusMeters)}
}

// BoundingBox builds a west,south,east,north bounding-box area.
func BoundingBox(west, south, east, north float64) Area {
	return Area{query: fmt.Sprintf("bbox:%s,%s,%s,%s", coord(west), coord(south), coord(east), coord(north))}
}

// coord renders a coordinate for provider query parameters.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// doGet performs one logical GET operation with the retry policy applied.
// Returns the response body on success and a classified error otherwise.
func (c *Client) doGet(ctx context.Context, operation, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var body []byte

	err := retryWithBackoff(ctx, c.logger, c.config.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &Error{Operation: operation, Class: ErrorClassNetwork, Message: "create request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(operation, "network_error").Inc()
			c.logger.Error().Err(err).Str("operation", operation).Msg("Upstream request failed")
			return &Error{Operation: operation, Class: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			class := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("operation", operation).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Upstream request error")
			return &Error{Operation: operation, StatusCode: resp.StatusCode, Class: class, Message: resp.Status}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &Error{Operation: operation, Class: ErrorClassNetwork, Message: "read response body", Err: err}
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
