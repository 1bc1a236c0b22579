package search

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDelay is the quiet period before a search fires.
const DefaultDelay = 300 * time.Millisecond

// Searcher debounces search input. Terms are trimmed and empty terms never
// reach the callback.
type Searcher struct {
	debouncer *Debouncer[string]
	logger    zerolog.Logger
}

// NewSearcher returns a Searcher calling fn with the settled term.
// A non-positive delay uses DefaultDelay.
func NewSearcher(delay time.Duration, fn func(ctx context.Context, term string)) *Searcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Searcher{logger: log.With().Str("component", "search").Logger()}
	s.debouncer = NewDebouncer(delay, func(ctx context.Context, term string) {
		s.logger.Debug().Str("term", term).Msg("Search fired")
		fn(ctx, term)
	})
	return s
}

// Input records a keystroke-level change of the search box.
// An empty term cancels any pending search.
func (s *Searcher) Input(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		s.debouncer.Cancel()
		return
	}
	s.debouncer.Trigger(term)
}

// Flush fires a pending search now.
func (s *Searcher) Flush() bool {
	return s.debouncer.Flush()
}

// Stop cancels pending and running searches.
func (s *Searcher) Stop() {
	s.debouncer.Stop()
}
