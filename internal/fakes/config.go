package fakes

import (
	"time"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway"
)

// NewConfig returns a gateway config with the test secret and the given
// origin allow-list. Quotas stay at their defaults; tests that exercise
// limits override them directly.
func NewConfig(origins ...string) gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.TokenSecret = TestSecret
	cfg.AllowedOrigins = origins
	return cfg
}

// NewQuota is shorthand for a fixed-window quota literal.
func NewQuota(window time.Duration, maxRequests int64) gateway.RateLimitQuota {
	return gateway.RateLimitQuota{Window: window, MaxRequests: maxRequests}
}
