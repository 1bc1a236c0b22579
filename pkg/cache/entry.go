package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a cached API response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// LastModified for conditional requests (If-Modified-Since)
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry stops being fresh
	Expires time.Time `json:"expires"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers,omitempty"`

	// CachedAt is when the body was last confirmed by the API
	CachedAt time.Time `json:"cached_at"`
}

// IsStale reports whether the entry must be revalidated before use.
func (e *CacheEntry) IsStale() bool {
	return e.IsStaleAt(time.Now())
}

// IsStaleAt reports whether the entry is stale at now.
func (e *CacheEntry) IsStaleAt(now time.Time) bool {
	return now.After(e.Expires)
}

// Freshness returns how long the entry stays fresh, 0 when stale.
func (e *CacheEntry) Freshness() time.Duration {
	d := time.Until(e.Expires)
	if d < 0 {
		return 0
	}
	return d
}

// Age returns the time since the entry was cached or last revalidated.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
