// Package testutil provides testing utilities for the legislation client.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/legis-client/pkg/legislation"
)

// APIPrefix is the versioned root served by MockAPI.
const APIPrefix = "/api/v1"

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is an in-memory legislation API. It serves listings, details and
// search from its dataset, answers conditional requests with 304, and
// reports rate limit headers.
type MockAPI struct {
	server *httptest.Server

	mu       sync.RWMutex
	records  map[legislation.Type][]legislation.Legislation
	handlers map[string]http.HandlerFunc
	failures []int

	// RateLimitRemaining is reported in X-RateLimit-Remaining; negative omits
	// the rate limit headers.
	RateLimitRemaining int
	// CacheControl is sent on 200 and 304 responses when set.
	CacheControl string

	// Tracking
	RequestCount      int
	ConditionalCount  int
	NotModifiedCount  int
	LastRequestHeader http.Header
	LastQuery         map[string]string
	paths             map[string]int
}

// NewMockAPI starts a mock legislation API.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		records:            make(map[legislation.Type][]legislation.Legislation),
		handlers:           make(map[string]http.HandlerFunc),
		paths:              make(map[string]int),
		RateLimitRemaining: 100,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serveHTTP))
	return mock
}

func (m *MockAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	m.LastQuery = make(map[string]string)
	for k := range r.URL.Query() {
		m.LastQuery[k] = r.URL.Query().Get(k)
	}
	m.paths[r.URL.Path]++
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	handler, custom := m.handlers[r.URL.Path]
	var failWith int
	if len(m.failures) > 0 {
		failWith, m.failures = m.failures[0], m.failures[1:]
	}
	remaining := m.RateLimitRemaining
	m.mu.Unlock()

	if remaining >= 0 {
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", "60")
	}

	if failWith != 0 {
		writeDetail(w, failWith, http.StatusText(failWith))
		return
	}
	if custom {
		handler(w, r)
		return
	}

	m.route(w, r)
}

// URL returns the server root.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// BaseURL returns the versioned API root, e.g. http://127.0.0.1:1234/api/v1.
func (m *MockAPI) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.NotModifiedCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
	m.paths = make(map[string]int)
}

// AddRecords adds records to the dataset, keyed by their Type.
func (m *MockAPI) AddRecords(records ...legislation.Legislation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.Type] = append(m.records[rec.Type], rec)
	}
}

// SetHandler overrides the handler for an exact path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a canned response for an exact path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
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

// FailNext makes the next requests answer with the given statuses, in order.
func (m *MockAPI) FailNext(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, statuses...)
}

// SetRateLimitRemaining changes the reported remaining requests.
func (m *MockAPI) SetRateLimitRemaining(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitRemaining = n
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetNotModifiedCount returns the number of 304 answers.
func (m *MockAPI) GetNotModifiedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.NotModifiedCount
}

// PathCount returns how often path was requested.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths[path]
}

// LastHeader returns the headers of the last request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// route dispatches the FastAPI-style routes.
func (m *MockAPI) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if !strings.HasPrefix(r.URL.Path, APIPrefix+"/") {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, APIPrefix+"/")
	parts := strings.Split(strings.TrimSuffix(rel, "/"), "/")

	switch {
	case rel == "search/":
		m.search(w, r)
	case len(parts) == 1 && strings.HasSuffix(rel, "/"):
		typ := legislation.Type(parts[0])
		if !typ.Valid() {
			writeDetail(w, http.StatusNotFound, "Not Found")
			return
		}
		m.list(w, r, typ)
	case len(parts) == 2 && parts[1] != "":
		typ := legislation.Type(parts[0])
		if !typ.Valid() {
			writeDetail(w, http.StatusNotFound, "Not Found")
			return
		}
		m.detail(w, r, typ, parts[1])
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (m *MockAPI) list(w http.ResponseWriter, r *http.Request, typ legislation.Type) {
	q := r.URL.Query()

	page, errPage := queryInt(q.Get("page"), 1)
	limit, errLimit := queryInt(q.Get("limit"), 20)
	switch {
	case errPage != nil || page < 1:
		writeValidation(w, "page", "Input should be greater than or equal to 1")
		return
	case errLimit != nil || limit < 1 || limit > legislation.MaxLimit:
		writeValidation(w, "limit", "Input should be less than or equal to 100")
		return
	}

	status := q.Get("status")
	start, end := q.Get("start_date"), q.Get("end_date")

	m.mu.RLock()
	var matched []legislation.Legislation
	for _, rec := range m.records[typ] {
		day := datePart(rec.IntroducedDate)
		if status != "" && string(rec.Status) != status {
			continue
		}
		if start != "" && day < start {
			continue
		}
		if end != "" && day > end {
			continue
		}
		matched = append(matched, rec)
	}
	m.mu.RUnlock()

	from := min((page-1)*limit, len(matched))
	to := min(from+limit, len(matched))
	data := matched[from:to]
	if data == nil {
		data = []legislation.Legislation{}
	}

	m.writeJSON(w, r, legislation.Page[legislation.Legislation]{
		Data:  data,
		Total: len(matched),
		Page:  page,
		Limit: limit,
	})
}

func (m *MockAPI) detail(w http.ResponseWriter, r *http.Request, typ legislation.Type, id string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records[typ] {
		if rec.ID == id {
			m.writeJSON(w, r, rec)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Legislation not found")
}

func (m *MockAPI) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.ToLower(q.Get("q"))
	if term == "" {
		writeValidation(w, "q", "Field required")
		return
	}
	typ := legislation.Type(q.Get("type"))

	m.mu.RLock()
	types := make([]string, 0, len(m.records))
	for t := range m.records {
		types = append(types, string(t))
	}
	sort.Strings(types)

	results := []legislation.Legislation{}
	for _, t := range types {
		if typ != "" && legislation.Type(t) != typ {
			continue
		}
		for _, rec := range m.records[legislation.Type(t)] {
			if strings.Contains(strings.ToLower(rec.Title), term) || strings.Contains(strings.ToLower(rec.Summary), term) {
				results = append(results, rec)
			}
		}
	}
	m.mu.RUnlock()

	m.writeJSON(w, r, results)
}

// writeJSON writes v with a content ETag and answers matching conditional
// requests with 304.
func (m *MockAPI) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`

	m.mu.RLock()
	cacheControl := m.CacheControl
	m.mu.RUnlock()

	w.Header().Set("ETag", etag)
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}

	if r.Header.Get("If-None-Match") == etag {
		m.mu.Lock()
		m.NotModifiedCount++
		m.mu.Unlock()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]any{
		"detail": []map[string]any{{
			"loc":  []string{"query", field},
			"msg":  msg,
			"type": "value_error",
		}},
	})
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func datePart(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

// SampleRecords generates n records of typ with ids "<type>_0001"...,
// rotating statuses and consecutive introduced dates from 2024-01-01.
func SampleRecords(typ legislation.Type, n int) []legislation.Legislation {
	statuses := []legislation.Status{
		legislation.StatusIntroduced, legislation.StatusInCommittee,
		legislation.StatusPassed, legislation.StatusSigned,
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	records := make([]legislation.Legislation, n)
	for i := range records {
		num := i + 1
		records[i] = legislation.Legislation{
			ID:             fmt.Sprintf("%s_%04d", typ, num),
			Type:           typ,
			Title:          fmt.Sprintf("%s Measure %d", typ.Label(), num),
			Summary:        fmt.Sprintf("Summary of %s measure number %d.", typ, num),
			Status:         statuses[i%len(statuses)],
			IntroducedDate: start.AddDate(0, 0, i).Format("2006-01-02T15:04:05"),
			SourceURL:      fmt.Sprintf("https://example.gov/%s/%d", typ, num),
			Metadata:       map[string]any{"sequence": num},
		}
	}
	return records
}
