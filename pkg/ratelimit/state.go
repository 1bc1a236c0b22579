// Package ratelimit tracks the legislation API's request rate limit and
// gates outgoing requests. It reads the X-RateLimit-Remaining,
// X-RateLimit-Reset and Retry-After response headers.
package ratelimit

import (
	"time"
)

// RedisKeyState holds the JSON encoded state shared by all clients.
// It lives outside the cache namespace so a cache purge keeps it.
const RedisKeyState = "ratelimit:legis:state"

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests when fewer requests than this remain.
	ThresholdCritical = 1

	// ThresholdWarning throttles requests when fewer requests than this remain.
	ThresholdWarning = 10
)

// DefaultWindow is assumed when the API omits the reset header.
const DefaultWindow = 60 * time.Second

// RateLimitState is the last known rate limit window of the API.
type RateLimitState struct {
	// Remaining is the number of requests left in the window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 when unknown.
	Limit int `json:"limit,omitempty"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	LastUpdate time.Time `json:"last_update"`

	// Known is false until the API has reported its limits.
	Known bool `json:"known"`

	IsHealthy bool `json:"is_healthy"`
}

// defaultState is used before any rate limit header has been seen.
func defaultState() *RateLimitState {
	return &RateLimitState{
		Remaining: ThresholdWarning,
		IsHealthy: true,
	}
}

// IsStale returns true if the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock reports whether requests must wait for the reset.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Known && s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Known && s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, 0 if passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = !s.Known || s.Remaining >= ThresholdWarning
}
