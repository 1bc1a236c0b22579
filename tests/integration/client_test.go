//go:build integration

// Package integration runs the client, cache and dashboard together against
// a real Redis.
package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/legis-client/internal/testutil"
	"github.com/Sternrassler/legis-client/pkg/cache"
	"github.com/Sternrassler/legis-client/pkg/client"
	"github.com/Sternrassler/legis-client/pkg/dashboard"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})
	return redisClient
}

func newClient(t *testing.T, redisClient *redis.Client, mock *testutil.MockAPI, mutate func(*client.Config)) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(redisClient, mock.BaseURL())
	cfg.UserAgent = "legis-integration/1.0"
	cfg.InitialBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	cfg.ThrottleDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func newMock(t *testing.T) *testutil.MockAPI {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	mock.AddRecords(testutil.SampleRecords(legislation.TypeFederal, 45)...)
	mock.AddRecords(testutil.SampleRecords(legislation.TypeState, 12)...)
	return mock
}

// TestNotModified checks that a stale entry is revalidated with its ETag and
// the cached body is served on 304.
func TestNotModified(t *testing.T) {
	redisClient := setupRedis(t)
	mock := newMock(t)
	c := newClient(t, redisClient, mock, func(cfg *client.Config) {
		cfg.StaleTime = time.Nanosecond
	})

	ctx := context.Background()
	before := promtest.ToFloat64(cache.NotModifiedResponses)

	first, err := c.Get(ctx, legislation.TypeFederal, "federal_0007")
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	second, err := c.Get(ctx, legislation.TypeFederal, "federal_0007")
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}

	if second.Title != first.Title || second.Title != "Federal Measure 7" {
		t.Errorf("revalidated title = %q, want %q", second.Title, first.Title)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("Conditional requests = %d, want 1", mock.GetConditionalCount())
	}
	if mock.GetNotModifiedCount() != 1 {
		t.Errorf("304 responses = %d, want 1", mock.GetNotModifiedCount())
	}
	if got := promtest.ToFloat64(cache.NotModifiedResponses) - before; got != 1 {
		t.Errorf("legis_304_responses_total grew by %v, want 1", got)
	}
}

// TestRetentionExpiry checks that Redis drops stale entries after the
// retention window, forcing a full fetch.
func TestRetentionExpiry(t *testing.T) {
	redisClient := setupRedis(t)
	mock := newMock(t)
	c := newClient(t, redisClient, mock, func(cfg *client.Config) {
		cfg.StaleTime = time.Nanosecond
		cfg.CacheRetention = time.Second
	})

	ctx := context.Background()
	key := cache.CacheKey{Endpoint: "/api/v1/state/state_0003"}

	if _, err := c.Get(ctx, legislation.TypeState, "state_0003"); err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	entry, err := c.Cache().Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache lookup failed: %v", err)
	}
	if !entry.IsStale() {
		t.Error("entry should be stale immediately")
	}

	time.Sleep(2 * time.Second)

	if _, err := c.Cache().Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected cache miss after retention, got %v", err)
	}

	if _, err := c.Get(ctx, legislation.TypeState, "state_0003"); err != nil {
		t.Fatalf("Third request failed: %v", err)
	}
	if mock.GetConditionalCount() != 0 {
		t.Errorf("Conditional requests = %d, want 0 after expiry", mock.GetConditionalCount())
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("API requests = %d, want 2", mock.GetRequestCount())
	}
}

// TestDashboardFlow drives the dashboard through view, search and page
// changes with the cache in front of the API.
func TestDashboardFlow(t *testing.T) {
	redisClient := setupRedis(t)
	mock := newMock(t)
	c := newClient(t, redisClient, mock, nil)

	ctx := context.Background()
	d := dashboard.New(c, dashboard.Config{PageSize: 20, SiblingCount: 1, SearchDelay: time.Millisecond})
	defer d.Close()

	d.SetPage(3)
	snap := d.Load(ctx)
	if snap.Err != nil {
		t.Fatalf("Load failed: %v", snap.Err)
	}
	if snap.Meta.Total != 45 || len(snap.Items) != 5 || snap.Pages.String() != "1 2 3" {
		t.Errorf("federal page 3: total %d, items %d, pages %s", snap.Meta.Total, len(snap.Items), snap.Pages)
	}

	if err := d.SetView(legislation.TypeState); err != nil {
		t.Fatal(err)
	}
	d.SetSearch("Measure 1")
	snap = d.Load(ctx)
	if snap.Err != nil {
		t.Fatalf("Search load failed: %v", snap.Err)
	}
	// Measure 1, 10, 11 and 12.
	if snap.State.Page != 1 || snap.Meta.Total != 4 {
		t.Errorf("search: page %d, total %d", snap.State.Page, snap.Meta.Total)
	}

	// Reloading the same state is served from cache.
	requests := mock.GetRequestCount()
	d.Load(ctx)
	if mock.GetRequestCount() != requests {
		t.Errorf("reload made %d API requests, want 0", mock.GetRequestCount()-requests)
	}
}

// TestExportAll fetches every page in parallel through the shared cache.
func TestExportAll(t *testing.T) {
	redisClient := setupRedis(t)
	mock := newMock(t)
	c := newClient(t, redisClient, mock, func(cfg *client.Config) {
		cfg.PageSize = 10
	})

	ctx := context.Background()
	items, err := c.ExportAll(ctx, legislation.TypeFederal, legislation.Filters{}, pagination.Config{
		MaxConcurrency: 3,
		Timeout:        5 * time.Second,
	})
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if len(items) != 45 {
		t.Fatalf("items = %d, want 45", len(items))
	}
	want := testutil.SampleRecords(legislation.TypeFederal, 45)
	for i, item := range items {
		if item.ID != want[i].ID {
			t.Fatalf("items[%d] = %s, want %s", i, item.ID, want[i].ID)
		}
	}
	if mock.PathCount("/api/v1/federal/") != 5 {
		t.Errorf("page requests = %d, want 5", mock.PathCount("/api/v1/federal/"))
	}
}
