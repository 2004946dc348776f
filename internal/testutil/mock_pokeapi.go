// Package testutil provides testing utilities for the PokeAPI client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path under which the mock serves resources, mirroring
// https://pokeapi.co/api/v2.
const APIPrefix = "/api/v2"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPokeAPI is a configurable mock PokeAPI server for testing.
type MockPokeAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	requestPaths []string
	userAgent    string
}

// NewMockPokeAPI creates a new mock PokeAPI server. Unknown paths answer 404
// with the plain-text body PokeAPI uses.
func NewMockPokeAPI() *MockPokeAPI {
	mock := &MockPokeAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.requestPaths = append(mock.requestPaths, r.URL.Path)
		mock.userAgent = r.Header.Get("User-Agent")
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockPokeAPI) URL() string {
	return m.server.URL
}

// BaseURL returns the value to use as client base URL.
func (m *MockPokeAPI) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockPokeAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPokeAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestPaths = nil
	m.userAgent = ""
}

// ResourcePath returns the server path of a resource.
func ResourcePath(endpoint, id string) string {
	return fmt.Sprintf("%s/%s/%s", APIPrefix, endpoint, id)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockPokeAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockPokeAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
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

// SetRecord serves record as JSON at endpoint/id.
func (m *MockPokeAPI) SetRecord(endpoint, id string, record map[string]any) {
	body, err := json.Marshal(record)
	if err != nil {
		panic(fmt.Sprintf("marshal mock record: %v", err))
	}
	m.SetResponse(ResourcePath(endpoint, id), NewJSONResponse(string(body)))
}

// SetPokemonRange serves a minimal pokemon record for every id in [minID, maxID).
func (m *MockPokeAPI) SetPokemonRange(minID, maxID int) {
	for id := minID; id < maxID; id++ {
		m.SetRecord("pokemon", fmt.Sprint(id), PokemonRecord(id, fmt.Sprintf("pokemon-%d", id)))
	}
}

// DropConnection makes path close the connection without answering.
func (m *MockPokeAPI) DropConnection(path string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("mock server does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		conn.Close()
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockPokeAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestedPaths returns the paths requested so far, in arrival order.
func (m *MockPokeAPI) RequestedPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requestPaths...)
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockPokeAPI) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userAgent
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates the plain-text 404 PokeAPI returns for unknown names.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "Not Found",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response with an HTML body.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "<h1>Server Error (500)</h1>",
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}

// PokemonRecord returns a record shaped like a PokeAPI pokemon resource.
func PokemonRecord(id int, name string) map[string]any {
	return map[string]any{
		"id":     id,
		"name":   strings.ToLower(name),
		"height": 4,
		"weight": 60,
		"types": []any{
			map[string]any{"slot": 1, "type": map[string]any{"name": "electric"}},
		},
		"abilities": []any{
			map[string]any{"slot": 1, "is_hidden": false, "ability": map[string]any{"name": "static"}},
			map[string]any{"slot": 3, "is_hidden": true, "ability": map[string]any{"name": "lightning-rod"}},
		},
		"stats": []any{
			map[string]any{"base_stat": 35, "stat": map[string]any{"name": "hp"}},
			map[string]any{"base_stat": 55, "stat": map[string]any{"name": "attack"}},
			map[string]any{"base_stat": 90, "stat": map[string]any{"name": "speed"}},
		},
	}
}
