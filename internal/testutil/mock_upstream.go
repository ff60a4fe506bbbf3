// Package testutil provides testing utilities for the Contentful proxy.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockResponse defines the behavior for a mocked endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockContentful is a configurable mock Contentful Delivery API server.
type MockContentful struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    string
	LastAuth     string
}

// NewMockContentful creates a new mock Delivery API server.
func NewMockContentful() *MockContentful {
	mock := &MockContentful{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.RawQuery
		mock.LastAuth = r.Header.Get("Authorization")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockContentful) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockContentful) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockContentful) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = ""
	m.LastAuth = ""
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockContentful) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a specific path.
func (m *MockContentful) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockContentful) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetEntriesResponse configures the entries collection endpoint of one space.
func (m *MockContentful) SetEntriesResponse(space, environment string, resp MockResponse) {
	path := fmt.Sprintf("/spaces/%s/environments/%s/entries", space, environment)
	m.SetResponse(path, resp)
}

// SetAssetResponse configures a single-asset endpoint of one space.
func (m *MockContentful) SetAssetResponse(space, environment, assetID string, resp MockResponse) {
	path := fmt.Sprintf("/spaces/%s/environments/%s/assets/%s", space, environment, assetID)
	m.SetResponse(path, resp)
}

// MockVimeo is a mock Vimeo API server serving download variants per video id.
type MockVimeo struct {
	server *httptest.Server
	mu     sync.RWMutex
	videos map[string]string

	RequestCount int
}

// NewMockVimeo creates a new mock Vimeo API server.
func NewMockVimeo() *MockVimeo {
	mock := &MockVimeo{
		videos: make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.mu.Unlock()

		mock.mu.RLock()
		downloads, exists := mock.videos[r.URL.Path]
		mock.mu.RUnlock()

		if !exists {
			http.NotFound(w, r)
			return
		}

		fmt.Fprintf(w, `{"download":%s}`, downloads)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockVimeo) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockVimeo) Close() {
	m.server.Close()
}

// SetDownloads configures the raw download JSON array for a video id.
func (m *MockVimeo) SetDownloads(videoID, downloadsJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos["/videos/"+videoID] = downloadsJSON
}
