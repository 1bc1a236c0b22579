// Package dashboard is the view-model behind the legislation dashboard. It
// keeps tab, filter, search, page and selection state consistent and loads
// snapshots ready for rendering.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"github.com/Sternrassler/legis-client/pkg/search"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source is the data the dashboard reads. *client.Client implements it.
type Source interface {
	List(ctx context.Context, typ legislation.Type, page int, filters legislation.Filters) (*legislation.Page[legislation.Legislation], error)
	Get(ctx context.Context, typ legislation.Type, id string) (*legislation.Legislation, error)
	Search(ctx context.Context, query string, typ legislation.Type) ([]legislation.Legislation, error)
	Stats(ctx context.Context) (*legislation.Stats, error)
}

// Config holds the dashboard settings.
type Config struct {
	PageSize     int
	SiblingCount int
	SearchDelay  time.Duration
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:     20,
		SiblingCount: pagination.DefaultSiblingCount,
		SearchDelay:  search.DefaultDelay,
	}
}

// FromConfig derives the dashboard settings from the application config.
func FromConfig(cfg config.Config) Config {
	return Config{
		PageSize:     cfg.PageSize,
		SiblingCount: cfg.SiblingCount,
		SearchDelay:  cfg.SearchDelay,
	}
}

// State is what the user has selected.
type State struct {
	View       legislation.Type
	Page       int
	Search     string
	Filters    legislation.Filters
	SelectedID string
}

// QueryKey identifies the data a state needs, in the form
// legislation/<view>/<page>/<search>/<filters>.
func (s State) QueryKey() string {
	return strings.Join([]string{
		"legislation",
		string(s.View),
		strconv.Itoa(s.Page),
		s.Search,
		s.Filters.String(),
	}, "/")
}

// Snapshot is one loaded render of the dashboard.
type Snapshot struct {
	State    State
	Items    []legislation.Legislation
	Meta     pagination.Meta
	Pages    pagination.PageSet
	Selected *legislation.Legislation
	Err      error
}

// Dashboard owns the view state. It is safe for concurrent use; the last
// write wins.
type Dashboard struct {
	src    Source
	cfg    Config
	logger zerolog.Logger

	searcher *search.Searcher

	mu         sync.Mutex
	state      State
	totalPages int
	onChange   func(State)
}

// New returns a dashboard on the first tab, page 1.
func New(src Source, cfg Config) *Dashboard {
	if cfg.PageSize < 1 || cfg.PageSize > legislation.MaxLimit {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.SiblingCount < 0 {
		cfg.SiblingCount = pagination.DefaultSiblingCount
	}

	d := &Dashboard{
		src:    src,
		cfg:    cfg,
		logger: log.With().Str("component", "dashboard").Logger(),
		state: State{
			View: legislation.Types[0],
			Page: 1,
		},
	}
	d.searcher = search.NewSearcher(cfg.SearchDelay, func(_ context.Context, term string) {
		d.SetSearch(term)
	})
	return d
}

// OnChange registers fn to be called with the new state after every change.
func (d *Dashboard) OnChange(fn func(State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// State returns the current state.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// update applies fn under the lock and notifies OnChange when it reports a change.
func (d *Dashboard) update(fn func(s *State) bool) {
	d.mu.Lock()
	changed := fn(&d.state)
	state, notify := d.state, d.onChange
	d.mu.Unlock()

	if !changed {
		return
	}
	d.logger.Debug().
		Str("view", string(state.View)).
		Int("page", state.Page).
		Str("query", state.Search).
		Str("selected", state.SelectedID).
		Msg("Dashboard state changed")
	if notify != nil {
		notify(state)
	}
}

// resetLocked returns to page 1 without a selection. Callers hold d.mu.
func (d *Dashboard) resetLocked(s *State) {
	s.Page = 1
	s.SelectedID = ""
	d.totalPages = 0
}

// SetView switches the tab.
func (d *Dashboard) SetView(t legislation.Type) error {
	if !t.Valid() {
		return fmt.Errorf("set view: unknown legislation type %q", t)
	}
	d.update(func(s *State) bool {
		if s.View == t {
			return false
		}
		s.View = t
		d.resetLocked(s)
		return true
	})
	return nil
}

// SetFilters replaces the filters. A search term carried in f becomes the
// dashboard search.
func (d *Dashboard) SetFilters(f legislation.Filters) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("set filters: %w", err)
	}
	term := strings.TrimSpace(f.Search)
	f.Search = ""

	d.update(func(s *State) bool {
		if s.Filters == f && (term == "" || term == s.Search) {
			return false
		}
		s.Filters = f
		if term != "" {
			s.Search = term
		}
		d.resetLocked(s)
		return true
	})
	return nil
}

// SetSearch applies a search term immediately. An empty term clears the search.
func (d *Dashboard) SetSearch(term string) {
	term = strings.TrimSpace(term)
	d.update(func(s *State) bool {
		if s.Search == term {
			return false
		}
		s.Search = term
		d.resetLocked(s)
		return true
	})
}

// SearchInput feeds a keystroke-level change of the search box. The term is
// applied once input settles for the configured delay. Clearing the box
// applies at once.
func (d *Dashboard) SearchInput(term string) {
	d.searcher.Input(term)
	if strings.TrimSpace(term) == "" {
		d.SetSearch("")
	}
}

// FlushSearch applies a pending search term now.
func (d *Dashboard) FlushSearch() bool {
	return d.searcher.Flush()
}

// SetPage moves to page n, clamped to [1, total pages] once the total is known.
// It returns the page actually set.
func (d *Dashboard) SetPage(n int) int {
	var page int
	d.update(func(s *State) bool {
		n = max(n, 1)
		if d.totalPages > 0 {
			n = min(n, d.totalPages)
		}
		page = n
		if s.Page == n {
			return false
		}
		s.Page = n
		return true
	})
	return page
}

// Select opens the detail view of record id; an empty id closes it.
func (d *Dashboard) Select(id string) {
	id = strings.TrimSpace(id)
	d.update(func(s *State) bool {
		if s.SelectedID == id {
			return false
		}
		s.SelectedID = id
		return true
	})
}

// Load fetches the data for the current state.
func (d *Dashboard) Load(ctx context.Context) Snapshot {
	state := d.State()
	snap := d.load(ctx, state)

	// A page beyond the end, e.g. after the data shrank, moves to the last page.
	if snap.Err == nil && state.Page > snap.Meta.TotalPages {
		d.mu.Lock()
		d.totalPages = snap.Meta.TotalPages
		d.mu.Unlock()
		d.SetPage(snap.Meta.TotalPages)
		state = d.State()
		snap = d.load(ctx, state)
	}

	if snap.Err == nil {
		d.mu.Lock()
		if d.state.QueryKey() == state.QueryKey() {
			d.totalPages = snap.Meta.TotalPages
		}
		d.mu.Unlock()
	} else {
		d.logger.Warn().Err(snap.Err).Str("key", state.QueryKey()).Msg("Dashboard load failed")
	}
	return snap
}

func (d *Dashboard) load(ctx context.Context, state State) Snapshot {
	snap := Snapshot{State: state, Items: []legislation.Legislation{}}

	var err error
	if state.Search != "" {
		err = d.loadSearch(ctx, state, &snap)
	} else {
		err = d.loadList(ctx, state, &snap)
	}
	if err != nil {
		snap.Err = err
		snap.Meta = pagination.NewMeta(1, d.cfg.PageSize, 0)
	}

	snap.Pages, err = snap.Meta.Window(d.cfg.SiblingCount)
	if err != nil && snap.Err == nil {
		snap.Err = fmt.Errorf("page window: %w", err)
	}

	if state.SelectedID != "" {
		selected, err := d.selected(ctx, state, snap.Items)
		if err != nil {
			snap.Err = errors.Join(snap.Err, err)
		}
		snap.Selected = selected
	}
	return snap
}

func (d *Dashboard) loadList(ctx context.Context, state State, snap *Snapshot) error {
	page, err := d.src.List(ctx, state.View, state.Page, state.Filters)
	if err != nil {
		return err
	}
	snap.Items = page.Data
	limit := page.Limit
	if limit < 1 {
		limit = d.cfg.PageSize
	}
	snap.Meta = pagination.NewMeta(state.Page, limit, page.Total)
	return nil
}

// loadSearch pages search results locally. The search endpoint returns every
// match at once and ignores filters, so filters are applied here.
func (d *Dashboard) loadSearch(ctx context.Context, state State, snap *Snapshot) error {
	results, err := d.src.Search(ctx, state.Search, state.View)
	if err != nil {
		return err
	}

	matched := results[:0:0]
	for _, rec := range results {
		if matches(rec, state.Filters) {
			matched = append(matched, rec)
		}
	}

	snap.Meta = pagination.NewMeta(state.Page, d.cfg.PageSize, len(matched))
	from := min(pagination.Offset(state.Page, d.cfg.PageSize), len(matched))
	to := min(from+d.cfg.PageSize, len(matched))
	snap.Items = append(snap.Items, matched[from:to]...)
	return nil
}

// matches applies the listing filters to a search result.
func matches(rec legislation.Legislation, f legislation.Filters) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	day := rec.IntroducedDate
	if len(day) > len(legislation.DateLayout) {
		day = day[:len(legislation.DateLayout)]
	}
	if f.StartDate != "" && day < f.StartDate {
		return false
	}
	if f.EndDate != "" && day > f.EndDate {
		return false
	}
	return true
}

// selected returns the selected record, from items when present.
func (d *Dashboard) selected(ctx context.Context, state State, items []legislation.Legislation) (*legislation.Legislation, error) {
	for i := range items {
		if items[i].ID == state.SelectedID {
			rec := items[i]
			return &rec, nil
		}
	}
	rec, err := d.src.Get(ctx, state.View, state.SelectedID)
	if err != nil {
		return nil, fmt.Errorf("load selected %s: %w", state.SelectedID, err)
	}
	return rec, nil
}

// LoadStats returns the overview counts.
func (d *Dashboard) LoadStats(ctx context.Context) (*legislation.Stats, error) {
	return d.src.Stats(ctx)
}

// Close stops the search debouncer.
func (d *Dashboard) Close() {
	d.searcher.Stop()
}
