// Package testutil provides testing utilities for paged listings.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Item is the element type served by MockPages.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MockPages is a paged JSON endpoint for testing.
// It serves GET /items?page=N&page_size=M with 1-based pages.
type MockPages struct {
	server *httptest.Server
	mu     sync.RWMutex

	items       []Item
	headers     bool
	delay       time.Duration
	failures    map[int]int
	requested   []int
	lastHeaders http.Header
}

// NewMockPages creates a server holding total items named item-1..item-total.
func NewMockPages(total int) *MockPages {
	items := make([]Item, total)
	for i := range items {
		items[i] = Item{ID: i + 1, Name: "item-" + strconv.Itoa(i+1)}
	}

	mock := &MockPages{
		items:    items,
		headers:  true,
		failures: make(map[int]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the items endpoint URL.
func (m *MockPages) URL() string {
	return m.server.URL + "/items"
}

// Close shuts down the mock server.
func (m *MockPages) Close() {
	m.server.Close()
}

// SetPaginationHeaders toggles the X-Pages and X-Total-Count headers.
func (m *MockPages) SetPaginationHeaders(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers = enabled
}

// SetDelay delays every response.
func (m *MockPages) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailNext makes the next request for page answer with status.
func (m *MockPages) FailNext(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = status
}

// RequestedPages returns the page of every request in arrival order.
func (m *MockPages) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.requested...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPages) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requested)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockPages) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeaders
}

func (m *MockPages) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/items" {
		http.NotFound(w, r)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, `{"error": "invalid page"}`, http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || size < 1 {
		size = 20
	}

	m.mu.Lock()
	m.requested = append(m.requested, page)
	m.lastHeaders = r.Header.Clone()
	status, fail := m.failures[page]
	delete(m.failures, page)
	delay := m.delay
	headers := m.headers
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if fail {
		w.WriteHeader(status)
		w.Write([]byte(`{"error": "injected failure"}`))
		return
	}

	m.mu.RLock()
	total := len(m.items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	body, _ := json.Marshal(m.items[start:end])
	m.mu.RUnlock()

	if headers {
		pages := (total + size - 1) / size
		w.Header().Set("X-Pages", strconv.Itoa(pages))
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
