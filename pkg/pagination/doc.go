// Package pagination computes page-control windows for paginated listings
// and fetches whole listings page by page.
//
// The legislation API pages with page/limit query parameters and reports the
// total item count. Generate turns that count into the page controls to show:
//
//	set, err := pagination.Generate(100, 10, 5, 1)
//	// set.String() == "1 … 4 5 6 … 10"
//
// The first and last page are always present, the current page keeps
// siblingCount neighbours on each side, and each run of hidden pages
// collapses into one Gap entry. A run of exactly one hidden page is shown
// as that page instead, since the marker would take the same space.
//
// BatchFetcher walks every page of a listing with a bounded worker pool:
//
//	fetcher := pagination.NewBatchFetcher[legislation.Legislation](source, pagination.DefaultConfig())
//	items, err := fetcher.FetchAll(ctx)
//
// It fetches the first page to learn the page count, distributes the rest
// across workers, and returns items in page order. On failure it returns
// the unbroken run of pages from page 1 together with the error.
package pagination
