package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"golang.org/x/sync/errgroup"
)

// endpoint builds an absolute API URL from escaped path segments.
// A trailing slash is kept for collection routes.
func (c *Client) endpoint(query url.Values, trailingSlash bool, segments ...string) string {
	u := c.BaseURL()
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = u.Path + "/" + strings.Join(escaped, "/")
	if trailingSlash {
		u.Path += "/"
	}
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// getJSON performs a GET through Do and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// List returns one page of legislation of type typ, using the configured
// page size.
func (c *Client) List(ctx context.Context, typ legislation.Type, page int, filters legislation.Filters) (*legislation.Page[legislation.Legislation], error) {
	return c.ListWithOptions(ctx, typ, legislation.ListOptions{
		Page:    page,
		Limit:   c.config.PageSize,
		Filters: filters,
	})
}

// ListWithOptions returns one page of legislation with explicit options.
func (c *Client) ListWithOptions(ctx context.Context, typ legislation.Type, opts legislation.ListOptions) (*legislation.Page[legislation.Legislation], error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("list: unknown legislation type %q", typ)
	}

	query, err := opts.Values()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", typ, err)
	}

	var page legislation.Page[legislation.Legislation]
	if err := c.getJSON(ctx, c.endpoint(query, true, string(typ)), &page); err != nil {
		return nil, fmt.Errorf("list %s: %w", typ, err)
	}
	if page.Data == nil {
		page.Data = []legislation.Legislation{}
	}
	return &page, nil
}

// Get returns one record. A missing record yields an error matching ErrNotFound.
func (c *Client) Get(ctx context.Context, typ legislation.Type, id string) (*legislation.Legislation, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("get: unknown legislation type %q", typ)
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("get %s: empty id", typ)
	}

	var item legislation.Legislation
	if err := c.getJSON(ctx, c.endpoint(nil, false, string(typ), id), &item); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", typ, id, err)
	}
	return &item, nil
}

// Search matches query against titles and summaries. An empty typ searches
// every type.
func (c *Client) Search(ctx context.Context, query string, typ legislation.Type) ([]legislation.Legislation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	values, err := legislation.SearchOptions{Query: query, Type: typ}.Values()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var results []legislation.Legislation
	if err := c.getJSON(ctx, c.endpoint(values, true, "search"), &results); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if results == nil {
		results = []legislation.Legislation{}
	}
	return results, nil
}

// Stats returns the total count per type. The three listings run concurrently
// with limit=1, reading only the totals.
func (c *Client) Stats(ctx context.Context) (*legislation.Stats, error) {
	totals := make([]int, len(legislation.Types))

	g, ctx := errgroup.WithContext(ctx)
	for i, typ := range legislation.Types {
		g.Go(func() error {
			page, err := c.ListWithOptions(ctx, typ, legislation.ListOptions{Page: 1, Limit: 1})
			if err != nil {
				return err
			}
			totals[i] = page.Total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	var stats legislation.Stats
	for i, typ := range legislation.Types {
		stats.Set(typ, totals[i])
	}
	return &stats, nil
}

// Pages returns a page source over a listing for pagination.BatchFetcher.
func (c *Client) Pages(typ legislation.Type, filters legislation.Filters) pagination.PageFetcher[legislation.Legislation] {
	return pagination.PageFetcherFunc[legislation.Legislation](func(ctx context.Context, page int) ([]legislation.Legislation, int, error) {
		p, err := c.List(ctx, typ, page, filters)
		if err != nil {
			return nil, 0, err
		}
		return p.Data, p.TotalPages(), nil
	})
}

// ExportAll fetches every page of a listing in parallel.
func (c *Client) ExportAll(ctx context.Context, typ legislation.Type, filters legislation.Filters, cfg pagination.Config) ([]legislation.Legislation, error) {
	items, err := pagination.NewBatchFetcher(c.Pages(typ, filters), cfg).FetchAll(ctx)
	if err != nil {
		return items, fmt.Errorf("export %s: %w", typ, err)
	}
	return items, nil
}
