// Package httputil provides the HTTP client seam used to reach the well data
// service, plus JSON response helpers for the dashboard's own endpoints.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// HTTPClient abstracts outbound HTTP so backend calls can be faked in tests.
// Use StandardClient in production and MockHTTPClient in tests.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Error      error
}

// MockHTTPClient records requests and replays canned responses.
//
// Responses registered with Route are matched by URL path prefix, longest
// prefix first, and are reused for every matching request. Responses queued
// with AddResponse are consumed in order by requests no route matched.
type MockHTTPClient struct {
	mu        sync.Mutex
	DoFunc    func(req *http.Request) (*http.Response, error)
	requests  []*http.Request
	routes    map[string]*MockResponse
	queue     []*MockResponse
	queueIdx  int
	DefaultFn func(req *http.Request) *MockResponse
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{routes: make(map[string]*MockResponse)}
}

// Route registers a response for every request whose path starts with prefix.
func (m *MockHTTPClient) Route(prefix string, statusCode int, body string) *MockHTTPClient {
	return m.RouteResponse(prefix, &MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// RouteResponse registers a fully specified response for prefix.
func (m *MockHTTPClient) RouteResponse(prefix string, resp *MockResponse) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp.Headers == nil {
		resp.Headers = make(http.Header)
	}
	m.routes[prefix] = resp
	return m
}

// AddResponse queues a response for the next unrouted request.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, &MockResponse{
		StatusCode: statusCode,
		Body:       []byte(body),
		Headers:    make(http.Header),
	})
	return m
}

// AddErrorResponse queues a transport error for the next unrouted request.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, &MockResponse{Error: err})
	return m
}

// Do records the request and returns the matching canned response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	doFunc := m.DoFunc
	resp := m.match(req)
	m.mu.Unlock()

	if doFunc != nil {
		return doFunc(req)
	}
	if resp == nil {
		resp = &MockResponse{StatusCode: http.StatusNotFound, Body: []byte(`{"detail":"not found"}`)}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	header := make(http.Header)
	for k, v := range resp.Headers {
		header[k] = append([]string(nil), v...)
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
		Header:     header,
		Request:    req,
	}, nil
}

// match must be called with mu held.
func (m *MockHTTPClient) match(req *http.Request) *MockResponse {
	best := ""
	var found *MockResponse
	for prefix, resp := range m.routes {
		if strings.HasPrefix(req.URL.Path, prefix) && len(prefix) > len(best) {
			best, found = prefix, resp
		}
	}
	if found != nil {
		return found
	}
	if m.queueIdx < len(m.queue) {
		resp := m.queue[m.queueIdx]
		m.queueIdx++
		return resp
	}
	if m.DefaultFn != nil {
		return m.DefaultFn(req)
	}
	return nil
}

// Requests returns a copy of the recorded requests.
func (m *MockHTTPClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// RequestsTo returns the recorded requests whose path starts with prefix.
func (m *MockHTTPClient) RequestsTo(prefix string) []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*http.Request
	for _, r := range m.requests {
		if strings.HasPrefix(r.URL.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests, routes and queued responses.
func (m *MockHTTPClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.routes = make(map[string]*MockResponse)
	m.queue = nil
	m.queueIdx = 0
	m.DoFunc = nil
	m.DefaultFn = nil
}
