package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/legis-client/internal/testutil"
	"github.com/Sternrassler/legis-client/pkg/client"
	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"github.com/google/go-cmp/cmp"
)

var _ Source = (*client.Client)(nil)

var errNotFound = errors.New("not found")

// fakeSource serves records from memory and counts calls.
type fakeSource struct {
	mu      sync.Mutex
	records map[legislation.Type][]legislation.Legislation
	err     error
	calls   map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records: map[legislation.Type][]legislation.Legislation{
			legislation.TypeFederal:   testutil.SampleRecords(legislation.TypeFederal, 100),
			legislation.TypeState:     testutil.SampleRecords(legislation.TypeState, 45),
			legislation.TypeExecutive: testutil.SampleRecords(legislation.TypeExecutive, 3),
		},
		calls: make(map[string]int),
	}
}

func (f *fakeSource) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeSource) List(_ context.Context, typ legislation.Type, page int, filters legislation.Filters) (*legislation.Page[legislation.Legislation], error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	var matched []legislation.Legislation
	for _, rec := range f.records[typ] {
		if matches(rec, filters) {
			matched = append(matched, rec)
		}
	}
	const limit = 10
	from := min(pagination.Offset(page, limit), len(matched))
	to := min(from+limit, len(matched))
	return &legislation.Page[legislation.Legislation]{
		Data:  append([]legislation.Legislation{}, matched[from:to]...),
		Total: len(matched),
		Page:  page,
		Limit: limit,
	}, nil
}

func (f *fakeSource) Get(_ context.Context, typ legislation.Type, id string) (*legislation.Legislation, error) {
	if err := f.record("get"); err != nil {
		return nil, err
	}
	for _, rec := range f.records[typ] {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeSource) Search(_ context.Context, query string, typ legislation.Type) ([]legislation.Legislation, error) {
	if err := f.record("search"); err != nil {
		return nil, err
	}
	var out []legislation.Legislation
	for _, rec := range f.records[typ] {
		if strings.Contains(strings.ToLower(rec.Title), strings.ToLower(query)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSource) Stats(context.Context) (*legislation.Stats, error) {
	if err := f.record("stats"); err != nil {
		return nil, err
	}
	var s legislation.Stats
	for typ, recs := range f.records {
		s.Set(typ, len(recs))
	}
	return &s, nil
}

func newTestDashboard(t *testing.T, src Source) *Dashboard {
	t.Helper()
	d := New(src, Config{PageSize: 10, SiblingCount: 1, SearchDelay: 20 * time.Millisecond})
	t.Cleanup(d.Close)
	return d
}

func ids(items []legislation.Legislation) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestNew_InitialState(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	want := State{View: legislation.TypeFederal, Page: 1}
	if diff := cmp.Diff(want, d.State()); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}
	if got := d.State().QueryKey(); got != "legislation/federal/1//" {
		t.Errorf("QueryKey() = %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	app := config.Default()
	app.PageSize = 50
	app.SiblingCount = 2
	app.SearchDelay = time.Second

	want := Config{PageSize: 50, SiblingCount: 2, SearchDelay: time.Second}
	if diff := cmp.Diff(want, FromConfig(app)); diff != "" {
		t.Errorf("FromConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestState_QueryKey(t *testing.T) {
	s := State{
		View:    legislation.TypeState,
		Page:    2,
		Search:  "water",
		Filters: legislation.Filters{Status: legislation.StatusPassed, StartDate: "2024-02-01"},
	}
	want := "legislation/state/2/water/start_date=2024-02-01&status=passed"
	if got := s.QueryKey(); got != want {
		t.Errorf("QueryKey() = %q, want %q", got, want)
	}
}

func TestStateTransitions_ResetPageAndSelection(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	var changes []State
	d.OnChange(func(s State) { changes = append(changes, s) })

	d.SetPage(4)
	d.Select("federal_0031")
	if err := d.SetView(legislation.TypeState); err != nil {
		t.Fatal(err)
	}
	want := State{View: legislation.TypeState, Page: 1}
	if diff := cmp.Diff(want, d.State()); diff != "" {
		t.Errorf("after SetView (-want +got):\n%s", diff)
	}

	d.SetPage(3)
	d.Select("state_0021")
	if err := d.SetFilters(legislation.Filters{Status: legislation.StatusSigned}); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.Page != 1 || s.SelectedID != "" || s.Filters.Status != legislation.StatusSigned {
		t.Errorf("after SetFilters state = %+v", s)
	}

	d.SetPage(2)
	d.SetSearch("  measure  ")
	if s := d.State(); s.Page != 1 || s.Search != "measure" {
		t.Errorf("after SetSearch state = %+v", s)
	}

	if len(changes) != 8 {
		t.Errorf("OnChange called %d times, want 8", len(changes))
	}
}

func TestStateTransitions_NoOpWhenUnchanged(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	calls := 0
	d.OnChange(func(State) { calls++ })

	d.SetPage(3)
	if err := d.SetView(legislation.TypeFederal); err != nil {
		t.Fatal(err)
	}
	d.SetSearch("")
	d.SetPage(3)

	if calls != 1 {
		t.Errorf("OnChange called %d times, want 1", calls)
	}
	if d.State().Page != 3 {
		t.Errorf("page = %d, want 3", d.State().Page)
	}
}

func TestSetView_Invalid(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())
	if err := d.SetView("county"); err == nil {
		t.Error("SetView(county) should fail")
	}
}

func TestSetFilters_Invalid(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	err := d.SetFilters(legislation.Filters{StartDate: "2024-03-01", EndDate: "2024-02-01"})
	if err == nil {
		t.Fatal("SetFilters() with reversed range should fail")
	}
	if !d.State().Filters.IsZero() {
		t.Error("invalid filters must not be applied")
	}
}

func TestSetFilters_SearchTermBecomesSearch(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	if err := d.SetFilters(legislation.Filters{Search: "Measure 1", Status: legislation.StatusIntroduced}); err != nil {
		t.Fatal(err)
	}
	s := d.State()
	if s.Search != "Measure 1" || s.Filters.Search != "" || s.Filters.Status != legislation.StatusIntroduced {
		t.Errorf("state = %+v", s)
	}
}

func TestSetPage_Clamp(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	if got := d.SetPage(-2); got != 1 {
		t.Errorf("SetPage(-2) = %d, want 1", got)
	}
	// Unknown total: only the lower bound applies.
	if got := d.SetPage(50); got != 50 {
		t.Errorf("SetPage(50) before load = %d, want 50", got)
	}

	d.SetPage(1)
	if snap := d.Load(context.Background()); snap.Err != nil {
		t.Fatal(snap.Err)
	}
	if got := d.SetPage(50); got != 10 {
		t.Errorf("SetPage(50) after load = %d, want 10", got)
	}
}

func TestLoad_List(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(t, src)
	d.SetPage(5)

	snap := d.Load(context.Background())
	if snap.Err != nil {
		t.Fatalf("Load() error = %v", snap.Err)
	}

	if got := snap.Pages.String(); got != "1 … 4 5 6 … 10" {
		t.Errorf("Pages = %q, want %q", got, "1 … 4 5 6 … 10")
	}
	wantMeta := pagination.NewMeta(5, 10, 100)
	if diff := cmp.Diff(wantMeta, snap.Meta); diff != "" {
		t.Errorf("Meta mismatch (-want +got):\n%s", diff)
	}
	if got := ids(snap.Items); got[0] != "federal_0041" || len(got) != 10 {
		t.Errorf("items = %v", got)
	}
	if src.count("list") != 1 || src.count("search") != 0 {
		t.Errorf("calls = %v", src.calls)
	}
}

func TestLoad_Search(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(t, src)
	if err := d.SetView(legislation.TypeState); err != nil {
		t.Fatal(err)
	}
	// "Measure 1" matches 1 and 10-19 of the 45 state records.
	d.SetSearch("Measure 1")
	d.SetPage(2)

	snap := d.Load(context.Background())
	if snap.Err != nil {
		t.Fatalf("Load() error = %v", snap.Err)
	}

	if snap.Meta.Total != 11 || snap.Meta.TotalPages != 2 {
		t.Errorf("Meta = %+v", snap.Meta)
	}
	if diff := cmp.Diff([]string{"state_0019"}, ids(snap.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if snap.Pages.String() != "1 2" {
		t.Errorf("Pages = %q", snap.Pages.String())
	}
	if src.count("search") != 1 || src.count("list") != 0 {
		t.Errorf("calls = %v", src.calls)
	}
}

func TestLoad_SearchAppliesFilters(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())
	d.SetSearch("Measure 1")
	if err := d.SetFilters(legislation.Filters{
		Status:  legislation.StatusPassed,
		EndDate: "2024-01-15",
	}); err != nil {
		t.Fatal(err)
	}

	snap := d.Load(context.Background())
	if snap.Err != nil {
		t.Fatal(snap.Err)
	}
	// Matches 1 and 10..15 by date; passed is every fourth from measure 3.
	if diff := cmp.Diff([]string{"federal_0011", "federal_0015"}, ids(snap.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PageBeyondEndMovesToLastPage(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())
	if err := d.SetView(legislation.TypeState); err != nil {
		t.Fatal(err)
	}
	d.SetPage(9)

	snap := d.Load(context.Background())
	if snap.Err != nil {
		t.Fatal(snap.Err)
	}
	if snap.State.Page != 5 || d.State().Page != 5 {
		t.Errorf("page = %d (state %d), want 5", snap.State.Page, d.State().Page)
	}
	if diff := cmp.Diff([]string{"state_0041", "state_0042", "state_0043", "state_0044", "state_0045"}, ids(snap.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Selected(t *testing.T) {
	src := newFakeSource()
	d := newTestDashboard(t, src)
	ctx := context.Background()

	d.Select("federal_0003")
	snap := d.Load(ctx)
	if snap.Err != nil || snap.Selected == nil || snap.Selected.ID != "federal_0003" {
		t.Fatalf("on-page selection: selected %+v, err %v", snap.Selected, snap.Err)
	}
	if src.count("get") != 0 {
		t.Error("record on the page should not be fetched again")
	}

	d.Select("federal_0077")
	snap = d.Load(ctx)
	if snap.Err != nil || snap.Selected == nil || snap.Selected.ID != "federal_0077" {
		t.Fatalf("off-page selection: selected %+v, err %v", snap.Selected, snap.Err)
	}
	if src.count("get") != 1 {
		t.Errorf("get calls = %d, want 1", src.count("get"))
	}

	d.Select("federal_9999")
	snap = d.Load(ctx)
	if !errors.Is(snap.Err, errNotFound) || snap.Selected != nil {
		t.Errorf("missing selection: selected %+v, err %v", snap.Selected, snap.Err)
	}
	if len(snap.Items) != 10 {
		t.Errorf("listing should survive a failed selection, got %d items", len(snap.Items))
	}
}

func TestLoad_Error(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("upstream down")
	d := newTestDashboard(t, src)

	snap := d.Load(context.Background())
	if snap.Err == nil || !strings.Contains(snap.Err.Error(), "upstream down") {
		t.Fatalf("Load() error = %v", snap.Err)
	}
	if len(snap.Items) != 0 || snap.Items == nil {
		t.Errorf("Items = %#v, want empty", snap.Items)
	}
	if snap.Pages.String() != "1" {
		t.Errorf("Pages = %q, want 1", snap.Pages.String())
	}
}

func TestLoadStats(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())

	stats, err := d.LoadStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := legislation.Stats{FederalCount: 100, StateCount: 45, ExecutiveOrdersCount: 3}
	if diff := cmp.Diff(want, *stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchInput_Debounced(t *testing.T) {
	d := newTestDashboard(t, newFakeSource())
	d.SetPage(3)

	changed := make(chan State, 4)
	d.OnChange(func(s State) { changed <- s })

	for _, term := range []string{"w", "wa", "wat", "water"} {
		d.SearchInput(term)
	}

	select {
	case s := <-changed:
		if s.Search != "water" || s.Page != 1 {
			t.Errorf("state after search = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("search was not applied")
	}

	select {
	case s := <-changed:
		t.Errorf("unexpected extra change %+v", s)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSearchInput_Flush(t *testing.T) {
	d := New(newFakeSource(), Config{PageSize: 10, SearchDelay: time.Hour})
	defer d.Close()

	d.SearchInput("clean air")
	if d.State().Search != "" {
		t.Fatal("search applied before the delay")
	}
	if !d.FlushSearch() {
		t.Fatal("FlushSearch() = false, want pending search")
	}
	if d.State().Search != "clean air" {
		t.Errorf("Search = %q, want clean air", d.State().Search)
	}
}

func TestSearchInput_BlankClearsImmediately(t *testing.T) {
	d := New(newFakeSource(), Config{PageSize: 10, SearchDelay: time.Hour})
	defer d.Close()

	d.SetSearch("water")
	d.SearchInput("wate")
	d.SearchInput("   ")

	if d.State().Search != "" {
		t.Errorf("Search = %q, want cleared", d.State().Search)
	}
	if d.FlushSearch() {
		t.Error("clearing should cancel the pending search")
	}
}

func TestDashboard_WithClient(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.AddRecords(testutil.SampleRecords(legislation.TypeExecutive, 25)...)

	redisClient := testutil.NewRedis(t)
	cfg := client.DefaultConfig(redisClient, mock.BaseURL())
	cfg.PageSize = 10
	c, err := client.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	d := newTestDashboard(t, c)
	if err := d.SetView(legislation.TypeExecutive); err != nil {
		t.Fatal(err)
	}
	d.SetPage(3)

	snap := d.Load(context.Background())
	if snap.Err != nil {
		t.Fatalf("Load() error = %v", snap.Err)
	}
	if snap.Pages.String() != "1 2 3" || len(snap.Items) != 5 {
		t.Errorf("pages %q, %d items", snap.Pages.String(), len(snap.Items))
	}
}
