package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultRetention is how long a stale entry is kept for revalidation.
const DefaultRetention = 24 * time.Hour

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis     *redis.Client
	retention time.Duration
	logger    zerolog.Logger
}

// NewManager creates a new cache manager with Redis backend.
// Stale entries are kept for retention after they expire, DefaultRetention
// when retention is not positive.
func NewManager(redisClient *redis.Client, retention time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		redis:     redisClient,
		retention: retention,
		logger:    log.With().Str("component", "cache").Logger(),
	}
}

// Get retrieves a cache entry by key. Stale entries are returned as well so
// the caller can revalidate them; check IsStale.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		// Drop the corrupt value so the next request repopulates it.
		_ = m.redis.Del(ctx, cacheKey).Err()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	freshness := "fresh"
	if entry.IsStale() {
		freshness = "stale"
	}
	CacheHits.WithLabelValues(freshness).Inc()
	m.logger.Debug().Str("key", cacheKey).Str("freshness", freshness).Msg("Cache hit")

	return &entry, nil
}

// Set stores a cache entry. The Redis TTL is the remaining freshness plus
// the retention window.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	cacheKey := key.String()
	ttl := entry.Freshness() + m.retention

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheEntrySize.Observe(float64(len(data)))
	m.logger.Debug().Str("key", cacheKey).Dur("ttl", ttl).Dur("fresh_for", entry.Freshness()).Msg("Cached response")

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Refresh marks a revalidated entry fresh until newExpires and stores it.
// It is used after a 304 Not Modified response.
func (m *Manager) Refresh(ctx context.Context, key CacheKey, newExpires time.Time) (*CacheEntry, error) {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	entry.Expires = newExpires
	entry.CachedAt = time.Now()
	if err := m.Set(ctx, key, entry); err != nil {
		return nil, err
	}

	NotModifiedResponses.Inc()
	return entry, nil
}

// Purge deletes every cache entry and returns how many were removed.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, matchAll, 100).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := m.redis.Del(ctx, keys...).Result()
			if err != nil {
				CacheErrors.WithLabelValues("purge").Inc()
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.logger.Info().Int("removed", removed).Msg("Cache purged")
	return removed, nil
}
