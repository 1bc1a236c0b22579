package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int
	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration for the legislation API.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of items and reports the total page count.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page int) (items []T, totalPages int, err error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, page int) ([]T, int, error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page int) ([]T, int, error) {
	return f(ctx, page)
}

type pageResult[T any] struct {
	page  int
	items []T
	err   error
}

// BatchFetcher fetches every page of a listing with a bounded worker pool.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher. Zero config values fall back to DefaultConfig.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "batch-fetcher").Logger(),
	}
}

// FetchAll fetches page 1 to learn the page count, then the remaining pages
// in parallel. Items are returned in page order. If any page fails, the items
// of the pages before the first failed page are returned with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	first, totalPages, err := bf.fetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	if totalPages <= 1 {
		bf.logger.Debug().Int("pages", 1).Dur("duration", time.Since(start)).Msg("Fetch complete (single page)")
		return first, nil
	}

	bf.logger.Info().Int("total_pages", totalPages).Msg("Starting parallel page fetch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int)
	results := make(chan pageResult[T])

	go func() {
		defer close(queue)
		for page := 2; page <= totalPages; page++ {
			select {
			case queue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	workers := min(bf.config.MaxConcurrency, totalPages-1)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, i, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := map[int][]T{1: first}
	errPage := 0
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				errPage, firstErr = res.page, res.err
			}
			cancel()
			continue
		}
		pages[res.page] = res.items

		if len(pages)%25 == 0 {
			bf.logger.Debug().
				Int("fetched", len(pages)).
				Int("total", totalPages).
				Msg("Fetch progress")
		}
	}

	// Only the unbroken run of pages from 1 is returned.
	var items []T
	complete := 0
	for page := 1; page <= totalPages; page++ {
		chunk, ok := pages[page]
		if !ok {
			break
		}
		items = append(items, chunk...)
		complete = page
	}

	if firstErr == nil && complete < totalPages {
		errPage, firstErr = complete+1, ctx.Err()
		if firstErr == nil {
			firstErr = fmt.Errorf("page missing")
		}
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Int("failed_page", errPage).
			Int("complete_pages", complete).
			Int("total_pages", totalPages).
			Msg("Page fetch failed, returning partial results")
		return items, fmt.Errorf("fetch page %d of %d: %w", errPage, totalPages, firstErr)
	}

	bf.logger.Info().
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, page int) ([]T, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, page)
}

func (bf *BatchFetcher[T]) worker(ctx context.Context, id int, queue <-chan int, results chan<- pageResult[T], wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for page := range queue {
		if ctx.Err() != nil {
			bf.logger.Debug().Int("worker_id", id).Int("pages_processed", processed).Msg("Worker stopping (context cancelled)")
			return
		}

		items, _, err := bf.fetchPage(ctx, page)
		select {
		case results <- pageResult[T]{page: page, items: items, err: err}:
		case <-ctx.Done():
			return
		}
		processed++
	}
}
