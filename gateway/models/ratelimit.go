package models

import "time"

// RateLimitState is the stored counter for one rate-limit key. Count is the
// number of accepted events in the current window; once now passes ResetTime
// the state is expired regardless of the stored count.
type RateLimitState struct {
	Count     int64     `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

// Expired reports whether the window has elapsed at the given instant.
func (s *RateLimitState) Expired(now time.Time) bool {
	return now.After(s.ResetTime)
}

// RateLimitResult is the outcome of one rate-limit check.
// RetryAfter is populated only on denial, in whole seconds.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Remaining  int64     `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	RetryAfter int64     `json:"retry_after,omitempty"`
}
