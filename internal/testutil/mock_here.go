// Package testutil provides testing utilities for the traffic cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock provider endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockHERE is a configurable mock of the HERE traffic and routing APIs.
// One instance serves both base URLs; handlers are registered per path.
type MockHERE struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    map[string][]string
}

// NewMockHERE creates a new mock provider server.
func NewMockHERE() *MockHERE {
	mock := &MockHERE{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w)
	}))

	return mock
}

// URL returns the mock server URL, usable as both TrafficURL and RoutingURL.
func (m *MockHERE) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHERE) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockHERE) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockHERE) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockHERE) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetFlowResponse configures the flow endpoint.
func (m *MockHERE) SetFlowResponse(resp MockResponse) {
	m.SetResponse("/flow", resp)
}

// SetIncidentsResponse configures the incidents endpoint.
func (m *MockHERE) SetIncidentsResponse(resp MockResponse) {
	m.SetResponse("/incidents", resp)
}

// SetRouteResponse configures the routing endpoint.
func (m *MockHERE) SetRouteResponse(resp MockResponse) {
	m.SetResponse("/routes", resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHERE) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers paths without a registered handler.
func (m *MockHERE) defaultHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"results": []}`))
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  "30",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewFlakyHandler creates a handler that fails with the given status for
// the first failCount requests and succeeds with data afterwards.
func NewFlakyHandler(failCount int, failStatus int, data string) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	calls := 0

	return func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n <= failCount {
			w.WriteHeader(failStatus)
			w.Write([]byte(`{"error": "transient"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
