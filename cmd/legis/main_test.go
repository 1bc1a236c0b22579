package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/legis-client/internal/testutil"
	"github.com/Sternrassler/legis-client/pkg/client"
	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
)

var fixedNow = time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*app, *testutil.MockAPI) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	mock.AddRecords(testutil.SampleRecords(legislation.TypeFederal, 45)...)
	mock.AddRecords(testutil.SampleRecords(legislation.TypeState, 7)...)
	mock.AddRecords(testutil.SampleRecords(legislation.TypeExecutive, 3)...)

	cfg := client.DefaultConfig(testutil.NewRedis(t), mock.BaseURL())
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.ThrottleDelay = 0
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	return &app{
		cfg:    config.Default(),
		client: c,
		now:    func() time.Time { return fixedNow },
	}, mock
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	err := run(t.Context(), a, args, &out, &out)
	return out.String(), err
}

func TestList(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "list", "--page", "2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	for _, want := range []string{
		"Federal legislation (45 total)",
		"federal_0021  Federal Measure 21",
		"Introduced: Jan 21, 2024 (3 days ago)",
		"Status:     in committee",
		"federal_0040",
		"‹ 1 [2] 3 ›",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "federal_0041") {
		t.Error("page 2 should stop at federal_0040")
	}
}

func TestList_PageBeyondEnd(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "list", "--page", "99")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "‹ 1 2 [3]") || strings.Contains(out, "›") {
		t.Errorf("expected last page bar without next arrow\n%s", out)
	}
	if !strings.Contains(out, "federal_0045") {
		t.Errorf("expected last record\n%s", out)
	}
}

func TestList_Search(t *testing.T) {
	a, mock := newTestApp(t)

	out, err := execute(t, a, "list", "--type", "state", "--search", "Measure 1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, `State legislation matching "Measure 1" (1 total)`) {
		t.Errorf("unexpected header\n%s", out)
	}
	if !strings.Contains(out, "state_0001") || !strings.Contains(out, "[1]") {
		t.Errorf("unexpected body\n%s", out)
	}
	if mock.PathCount("/api/v1/search/") != 1 {
		t.Errorf("search requests = %d, want 1", mock.PathCount("/api/v1/search/"))
	}
}

func TestList_JSON(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "list", "--type", "federal", "--status", "passed", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var got struct {
		Data []legislation.Legislation `json:"data"`
		pagination.Meta
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	// Every fourth record starting at index 2 is passed.
	if got.Total != 11 {
		t.Errorf("total = %d, want 11", got.Total)
	}
	for _, rec := range got.Data {
		if rec.Status != legislation.StatusPassed {
			t.Errorf("%s has status %s", rec.ID, rec.Status)
		}
	}
}

func TestList_InvalidFlags(t *testing.T) {
	a, mock := newTestApp(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown type", []string{"list", "--type", "municipal"}},
		{"bad date", []string{"list", "--since", "01/02/2024"}},
		{"reversed range", []string{"list", "--since", "2024-02-01", "--until", "2024-01-01"}},
		{"unknown status", []string{"list", "--status", "lost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, a, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("upstream requests = %d, want 0", mock.GetRequestCount())
	}
}

func TestShow(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "show", "federal", "federal_0002")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{
		"federal_0002  Federal Measure 2",
		"Summary of federal measure number 2.",
		"Type:   Federal",
		"Source: https://example.gov/federal/2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestShow_NotFound(t *testing.T) {
	a, _ := newTestApp(t)

	_, err := execute(t, a, "show", "state", "nope")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "search", "Measure 4", "--type", "federal")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Measure 4 and Measure 40 through 45.
	if !strings.Contains(out, "7 results") {
		t.Errorf("unexpected result count\n%s", out)
	}
}

func TestSearch_NoResults(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "search", "zebra")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "No legislation found.") {
		t.Errorf("output = %q", out)
	}
}

func TestStats(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4\n%s", len(lines), out)
	}
	for i, want := range [][2]string{
		{"Federal", "45"},
		{"State", "7"},
		{"Executive Orders", "3"},
		{"Total", "55"},
	} {
		fields := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(fields, want[0]) || !strings.HasSuffix(fields, want[1]) {
			t.Errorf("line %d = %q, want %s ... %s", i, lines[i], want[0], want[1])
		}
	}
}

func TestExport(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "export", "--type", "state", "--concurrency", "2")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var items []legislation.Legislation
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 7 {
		t.Fatalf("items = %d, want 7", len(items))
	}
	if items[0].ID != "state_0001" || items[6].ID != "state_0007" {
		t.Errorf("order = %s..%s", items[0].ID, items[6].ID)
	}
}

func TestCacheClear(t *testing.T) {
	a, mock := newTestApp(t)

	if _, err := execute(t, a, "stats"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, a, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, "Removed 3 cached responses.") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, a, "stats"); err != nil {
		t.Fatal(err)
	}
	// Stats lists each of the three types.
	if mock.GetRequestCount() != 6 {
		t.Errorf("upstream requests = %d, want 6 after purge", mock.GetRequestCount())
	}
}

func TestPageBar(t *testing.T) {
	tests := []struct {
		page, total int
		want        string
	}{
		{1, 1, "[1]"},
		{1, 30, "[1] 2 3 ›"},
		{5, 100, "‹ 1 … 4 [5] 6 … 10 ›"},
		{10, 100, "‹ 1 … 9 [10]"},
	}

	for _, tt := range tests {
		meta := pagination.NewMeta(tt.page, 10, tt.total)
		pages, err := meta.Window(1)
		if err != nil {
			t.Fatal(err)
		}
		if got := pageBar(pages, meta); got != tt.want {
			t.Errorf("pageBar(page %d of %d items) = %q, want %q", tt.page, tt.total, got, tt.want)
		}
	}
}

func TestRun_ClosesRedisOnFailure(t *testing.T) {
	a, _ := newTestApp(t)
	a.redis = testutil.NewRedis(t)

	if _, err := execute(t, a, "show", "state", "nope"); err == nil {
		t.Fatal("expected error")
	}
	if err := a.redis.Ping(t.Context()).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Errorf("Ping after failed command = %v, want %v", err, redis.ErrClosed)
	}
}

func TestHelp_NamesConfigVariables(t *testing.T) {
	a, _ := newTestApp(t)

	out, err := execute(t, a, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out, "REDIS_URL") {
		t.Errorf("help should name REDIS_URL\n%s", out)
	}
	if strings.Contains(out, "REDIS_ADDR") {
		t.Errorf("help names REDIS_ADDR, which config does not read\n%s", out)
	}
}
