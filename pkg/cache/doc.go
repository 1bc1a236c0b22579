// Package cache provides the Redis-backed response cache of the legislation
// client.
//
// Entries follow stale-time semantics:
//
//   - A fresh entry is served without contacting the API.
//   - A stale entry is kept for a retention window and revalidated with
//     If-None-Match or If-Modified-Since. A 304 refreshes it in place.
//   - Freshness comes from Cache-Control max-age, then Expires, then the
//     configured stale time.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 0)
//
//	key := cache.CacheKey{
//		Endpoint:    "/api/v1/federal",
//		QueryParams: url.Values{"page": []string{"2"}, "limit": []string{"20"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from the API
//	case err == nil && !entry.IsStale():
//		// serve entry.Data
//	}
//
// # Metrics
//
//   - legis_cache_hits_total{freshness} - Cache hits
//   - legis_cache_misses_total - Cache misses
//   - legis_cache_entry_size_bytes - Stored entry size
//   - legis_conditional_requests_total - Revalidations sent
//   - legis_304_responses_total - Revalidations answered with 304
//   - legis_cache_errors_total{operation} - Cache operation errors
package cache
