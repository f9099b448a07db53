// Package ratelimit tracks how often the catalog API answers with HTTP 429.
// The streak of consecutive rate-limited responses is kept in a Store so that
// several processes sharing one egress address can observe the same state.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyConsecutive     = "dex:rate_limit:consecutive"
	RedisKeyTotal           = "dex:rate_limit:total"
	RedisKeyLastRateLimited = "dex:rate_limit:last_rate_limited"
	RedisKeyLastUpdate      = "dex:rate_limit:last_update"
)

// Thresholds for the consecutive 429 streak.
const (
	// StreakThresholdWarning marks the streak length at which the server is
	// considered to be throttling us.
	StreakThresholdWarning = 3

	// StreakThresholdCritical marks a streak long enough that every retry
	// budget in flight is likely to be exhausted.
	StreakThresholdCritical = 6
)

// State is the observed rate limit state.
type State struct {
	// Consecutive is the number of 429 responses since the last success.
	Consecutive int `json:"consecutive"`

	// Total is the number of 429 responses ever recorded.
	Total int64 `json:"total"`

	// LastRateLimited is when the most recent 429 was recorded.
	LastRateLimited time.Time `json:"last_rate_limited"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true while no streak is open.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsThrottling returns true once the streak reaches the warning threshold.
func (s *State) NeedsThrottling() bool {
	return s.Consecutive >= StreakThresholdWarning && !s.IsCritical()
}

// IsCritical returns true once the streak reaches the critical threshold.
func (s *State) IsCritical() bool {
	return s.Consecutive >= StreakThresholdCritical
}

// SinceLastRateLimited returns the time since the last 429, or 0 if none was
// ever recorded.
func (s *State) SinceLastRateLimited() time.Duration {
	if s.LastRateLimited.IsZero() {
		return 0
	}
	return time.Since(s.LastRateLimited)
}

// UpdateHealth recomputes IsHealthy from Consecutive.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Consecutive == 0
}
