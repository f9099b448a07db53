// Package testutil provides a mock catalog server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a scripted response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Fixture is one catalog item served by the mock.
type Fixture struct {
	ID    int
	Name  string
	Types []string
}

// MockCatalog is a configurable catalog API server. It serves the listing,
// detail and category endpoints from in-memory fixtures and counts every
// request by path.
type MockCatalog struct {
	server *httptest.Server

	mu         sync.Mutex
	items      map[int]Fixture
	order      []int
	categories map[string][]int
	delays     map[int]time.Duration
	scripts    map[string][]MockResponse
	handlers   map[string]http.HandlerFunc
	badURLs    map[string]bool
	counts     map[string]int
	total      int
}

// NewMockCatalog creates a mock serving items 1..n named "item-<id>" with
// type "normal".
func NewMockCatalog(n int) *MockCatalog {
	m := &MockCatalog{
		items:      make(map[int]Fixture),
		categories: make(map[string][]int),
		delays:     make(map[int]time.Duration),
		scripts:    make(map[string][]MockResponse),
		handlers:   make(map[string]http.HandlerFunc),
		badURLs:    make(map[string]bool),
		counts:     make(map[string]int),
	}
	for id := 1; id <= n; id++ {
		m.addLocked(Fixture{ID: id, Name: fmt.Sprintf("item-%d", id), Types: []string{"normal"}})
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the API root of the mock.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// AddItem adds or replaces a fixture. New ids are appended to the listing.
func (m *MockCatalog) AddItem(f Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(f)
}

func (m *MockCatalog) addLocked(f Fixture) {
	if _, exists := m.items[f.ID]; !exists {
		m.order = append(m.order, f.ID)
	}
	m.items[f.ID] = f
}

// SetCategory sets the member ids of a category.
func (m *MockCatalog) SetCategory(name string, ids ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[name] = append([]int(nil), ids...)
}

// SetItemDelay delays the detail response for one id.
func (m *MockCatalog) SetItemDelay(id int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[id] = d
}

// Script queues responses for a path. Each request to the path consumes one
// scripted response; once the queue is empty the fixtures are served again.
func (m *MockCatalog) Script(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[path] = append(m.scripts[path], responses...)
}

// SetHandler overrides a path entirely.
func (m *MockCatalog) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// BreakItemURL makes the listing advertise a non-numeric URL for the id.
func (m *MockCatalog) BreakItemURL(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badURLs[strconv.Itoa(id)] = true
}

// Count returns how many requests hit path.
func (m *MockCatalog) Count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// ItemFetches returns how many detail requests were made for id.
func (m *MockCatalog) ItemFetches(id int) int {
	return m.Count(fmt.Sprintf("/pokemon/%d", id))
}

// TotalItemFetches returns the number of detail requests across all ids.
func (m *MockCatalog) TotalItemFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for path, c := range m.counts {
		if strings.HasPrefix(path, "/pokemon/") {
			n += c
		}
	}
	return n
}

// TotalRequests returns the number of requests of any kind.
func (m *MockCatalog) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Reset clears all counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.total = 0
}

func (m *MockCatalog) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimRight(r.URL.Path, "/")

	m.mu.Lock()
	m.counts[path]++
	m.total++
	handler, hasHandler := m.handlers[path]
	var scripted *MockResponse
	if queue := m.scripts[path]; len(queue) > 0 {
		resp := queue[0]
		m.scripts[path] = queue[1:]
		scripted = &resp
	}
	m.mu.Unlock()

	if scripted != nil {
		writeScripted(w, *scripted)
		return
	}
	if hasHandler {
		handler(w, r)
		return
	}

	switch {
	case path == "/pokemon":
		m.serveList(w, r)
	case strings.HasPrefix(path, "/pokemon/"):
		m.serveItem(w, strings.TrimPrefix(path, "/pokemon/"))
	case path == "/type":
		m.serveCategories(w)
	case strings.HasPrefix(path, "/type/"):
		m.serveCategory(w, strings.TrimPrefix(path, "/type/"))
	default:
		http.NotFound(w, r)
	}
}

func writeScripted(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func (m *MockCatalog) serveList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	m.mu.Lock()
	ids := append([]int(nil), m.order...)
	m.mu.Unlock()

	end := min(offset+limit, len(ids))
	results := make([]map[string]string, 0, limit)
	for i := offset; i < end; i++ {
		results = append(results, m.ref("pokemon", ids[i]))
	}

	var next any
	if end < len(ids) {
		next = fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", m.server.URL, end, limit)
	}
	writeJSON(w, map[string]any{
		"count":   len(ids),
		"next":    next,
		"results": results,
	})
}

func (m *MockCatalog) serveItem(w http.ResponseWriter, ref string) {
	m.mu.Lock()
	var (
		f     Fixture
		found bool
	)
	if id, err := strconv.Atoi(ref); err == nil {
		f, found = m.items[id]
	} else {
		for _, candidate := range m.items {
			if candidate.Name == ref {
				f, found = candidate, true
				break
			}
		}
	}
	delay := m.delays[f.ID]
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !found {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
		return
	}
	writeJSON(w, detailPayload(f))
}

func (m *MockCatalog) serveCategories(w http.ResponseWriter) {
	m.mu.Lock()
	names := make([]string, 0, len(m.categories)+2)
	for name := range m.categories {
		names = append(names, name)
	}
	m.mu.Unlock()
	names = append(names, "unknown", "shadow")
	sort.Strings(names)

	results := make([]map[string]string, 0, len(names))
	for _, n := range names {
		results = append(results, map[string]string{"name": n, "url": m.server.URL + "/type/" + n + "/"})
	}
	writeJSON(w, map[string]any{"count": len(results), "results": results})
}

func (m *MockCatalog) serveCategory(w http.ResponseWriter, name string) {
	m.mu.Lock()
	ids, ok := m.categories[name]
	m.mu.Unlock()
	if !ok {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
		return
	}

	members := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, map[string]any{"slot": 1, "pokemon": m.ref("pokemon", id)})
	}
	writeJSON(w, map[string]any{"name": name, "pokemon": members})
}

func (m *MockCatalog) ref(kind string, id int) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.items[id]
	seg := strconv.Itoa(id)
	if m.badURLs[seg] {
		seg = "not-a-number"
	}
	return map[string]string{
		"name": f.Name,
		"url":  fmt.Sprintf("%s/%s/%s/", m.server.URL, kind, seg),
	}
}

func detailPayload(f Fixture) map[string]any {
	types := make([]map[string]any, 0, len(f.Types))
	for i, t := range f.Types {
		types = append(types, map[string]any{"slot": i + 1, "type": map[string]string{"name": t}})
	}
	return map[string]any{
		"id":    f.ID,
		"name":  f.Name,
		"types": types,
		"stats": []map[string]any{
			{"base_stat": 40 + f.ID%50, "stat": map[string]string{"name": "hp"}},
			{"base_stat": 50 + f.ID%40, "stat": map[string]string{"name": "attack"}},
		},
		"abilities": []map[string]any{
			{"ability": map[string]string{"name": "overgrow"}, "is_hidden": false},
			{"ability": map[string]string{"name": "chlorophyll"}, "is_hidden": true},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"detail": "Not found."}`,
	}
}
