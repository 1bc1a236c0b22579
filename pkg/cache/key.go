package cache

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// KeyPrefix starts every key written by the cache.
const KeyPrefix = "legis"

// CacheKey identifies a cached API response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/api/v1/federal")
	Endpoint string

	// PathParams are named path parameters (e.g., {"id": "federal_1234"})
	PathParams map[string]string

	// QueryParams are the query parameters (e.g., {"page": ["2"]})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: legis:endpoint:param1=val1:query1=val1
//
// Example:
//
//	legis:api/v1/federal:limit=20:page=2:status=active
//
// Multi-valued query parameters are joined with commas in request order.
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}
	for _, name := range slices.Sorted(maps.Keys(k.PathParams)) {
		parts = append(parts, name+"="+k.PathParams[name])
	}
	for _, name := range slices.Sorted(maps.Keys(k.QueryParams)) {
		parts = append(parts, name+"="+strings.Join(k.QueryParams[name], ","))
	}
	return strings.Join(parts, ":")
}

// KeyFromURL builds the key of a request URL.
func KeyFromURL(u *url.URL) CacheKey {
	return CacheKey{
		Endpoint:    u.Path,
		QueryParams: u.Query(),
	}
}

// matchAll is the SCAN pattern covering every cache key.
const matchAll = KeyPrefix + ":*"
