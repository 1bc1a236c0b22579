// Package client provides the legislation API client with caching, rate
// limiting, retries and a circuit breaker.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/legis-client/pkg/cache"
	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legis_requests_total",
		Help: "Total legislation API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legis_request_duration_seconds",
		Help:    "Request duration in seconds by endpoint, cache hits included",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legis_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "legis_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)

// RequestIDHeader carries a per-request UUID to the API.
const RequestIDHeader = "X-Request-ID"

// Client is the legislation API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	breaker     *gobreaker.CircuitBreaker
	retry       RetryConfig
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for caching and rate limit state
	Redis *redis.Client

	// BaseURL is the versioned API root, e.g. http://localhost:8000/api/v1
	BaseURL string

	UserAgent string

	// StaleTime is how long responses are served from cache without
	// revalidation when the API sends no caching headers.
	StaleTime time.Duration

	// CacheRetention keeps stale entries for revalidation.
	CacheRetention time.Duration

	// PageSize is the limit used by List.
	PageSize int

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Circuit breaker: open when at least BreakerMinRequests were seen in
	// the interval and the failure ratio reached BreakerFailureRatio.
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerTimeout      time.Duration

	// ThrottleDelay is the pause applied when few rate limit requests remain.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, baseURL string) Config {
	return Config{
		Redis:               redis,
		BaseURL:             baseURL,
		UserAgent:           "legis-client/0.1.0",
		StaleTime:           cache.DefaultStaleTime,
		CacheRetention:      cache.DefaultRetention,
		PageSize:            20,
		Timeout:             30 * time.Second,
		MaxRetries:          3,
		InitialBackoff:      500 * time.Millisecond,
		MaxBackoff:          10 * time.Second,
		BreakerFailureRatio: 0.6,
		BreakerMinRequests:  5,
		BreakerTimeout:      30 * time.Second,
		ThrottleDelay:       ratelimit.DefaultThrottleDelay,
	}
}

// FromConfig derives a client configuration from the loaded application config.
func FromConfig(cfg config.Config, redis *redis.Client) Config {
	c := DefaultConfig(redis, cfg.BaseURL())
	c.UserAgent = cfg.UserAgent
	c.StaleTime = cfg.StaleTime
	c.PageSize = cfg.PageSize
	c.Timeout = cfg.HTTPTimeout
	return c
}

// New creates a new legislation API client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.PageSize < 1 || cfg.PageSize > legislation.MaxLimit {
		return nil, fmt.Errorf("page size must be between 1 and %d (got %d)", legislation.MaxLimit, cfg.PageSize)
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		return nil, fmt.Errorf("breaker failure ratio must be in (0, 1] (got %v)", cfg.BreakerFailureRatio)
	}

	logger := log.With().Str("component", "legis-client").Logger()

	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger)
	rateLimiter.SetThrottleDelay(cfg.ThrottleDelay)

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     base,
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cache.NewManager(cfg.Redis, cfg.CacheRetention),
		retry:       retry,
		config:      cfg,
		logger:      logger,
	}
	c.breaker = c.newBreaker(base.Host)

	return c, nil
}

func (c *Client) newBreaker(name string) *gobreaker.CircuitBreaker {
	minRequests := c.config.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 1
	}
	ratio := c.config.BreakerFailureRatio

	breakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		// Client errors and cancellations say nothing about API health.
		IsSuccessful: func(err error) bool {
			switch classifyError(err) {
			case ErrorClassServer, ErrorClassNetwork:
				return false
			}
			return !errors.Is(err, ErrRetryExhausted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// This is the core request method that orchestrates all client features.
//
// Fresh cached GET responses are served without a request. Stale ones are
// revalidated. Non-2xx answers are returned as *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check rate limit
	allowed, wait, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Dur("retry_after", wait).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, &APIError{
			StatusCode: http.StatusTooManyRequests,
			ErrorClass: ErrorClassRateLimit,
			Message:    "request blocked until the rate limit window resets",
			RetryAfter: wait,
		}
	}

	// Step 2: Check cache
	cacheable := req.Method == http.MethodGet
	cacheKey := cache.KeyFromURL(req.URL)

	var cachedEntry *cache.CacheEntry
	if cacheable {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if cachedEntry != nil && !cachedEntry.IsStale() {
		c.logger.Debug().Str("endpoint", endpoint).Str("key", cacheKey.String()).Msg("Serving fresh cache entry")
		requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
		return cache.EntryToResponse(cachedEntry, req, "HIT"), nil
	}

	// Step 3: Make conditional request for stale entries
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Set request headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("Executing API request")

	// Step 5: Execute through the circuit breaker with retries
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var resp *http.Response
		err := retryWithBackoff(ctx, c.retry, func() error {
			var attemptErr error
			resp, attemptErr = c.attempt(req, endpoint)
			return attemptErr
		})
		return resp, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			requestsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		if ctx.Err() != nil && !errors.Is(err, ErrContextCancelled) {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
		return nil, err
	}
	resp := result.(*http.Response)

	// Step 6: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		if cachedEntry == nil {
			return nil, &APIError{
				StatusCode: http.StatusNotModified,
				ErrorClass: ErrorClassClient,
				Message:    "not modified without a cached entry",
			}
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		requestsTotal.WithLabelValues(endpoint, "304").Inc()

		expires, ok := cache.ExpiresFromHeaders(resp.Header, c.config.StaleTime)
		if !ok {
			expires = time.Now()
		}
		entry, err := c.cache.Refresh(ctx, cacheKey, expires)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
			entry = cachedEntry
			entry.Expires = expires
			entry.CachedAt = time.Now()
		}
		return cache.EntryToResponse(entry, req, "REVALIDATED"), nil
	}

	// Step 7: Update cache on success
	if cacheable && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.config.StaleTime)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}
	resp.Header.Set(cache.CacheStatusHeader, "MISS")

	return resp, nil
}

// attempt sends req once. Error responses are converted to *APIError.
func (c *Client) attempt(req *http.Request, endpoint string) (*http.Response, error) {
	ctx := req.Context()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	if resp.StatusCode < 400 {
		if resp.StatusCode != http.StatusNotModified {
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		}
		return resp, nil
	}

	apiErr := decodeAPIError(resp)
	errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait, err := c.rateLimiter.RecordRetryAfter(ctx, resp.Header)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record rate limit window")
		}
		apiErr.RetryAfter = wait
	}

	event := c.logger.Warn()
	if apiErr.ErrorClass == ErrorClassClient {
		event = c.logger.Debug()
	}
	event.
		Str("endpoint", endpoint).
		Int("status_code", resp.StatusCode).
		Str("error_class", string(apiErr.ErrorClass)).
		Str("message", apiErr.Message).
		Msg("API request error")

	return nil, apiErr
}

// endpointLabel collapses a request path into a low-cardinality metric label.
func (c *Client) endpointLabel(path string) string {
	rel := strings.Trim(strings.TrimPrefix(path, c.baseURL.Path), "/")
	parts := strings.Split(rel, "/")
	switch {
	case rel == "":
		return "/"
	case parts[0] == "search":
		return "search"
	case len(parts) == 1:
		return parts[0]
	default:
		return parts[0] + "/{id}"
	}
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the cache manager.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}
