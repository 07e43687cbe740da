package interfaces

import (
	"context"
	"time"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// RateLimitStore is the storage capability behind the rate limiter. Both the
// in-memory backend and the Redis backend implement identical semantics:
// Get returns nil for an unknown key and Set persists the state with a TTL
// so that expired keys self-evict.
//
// Increment is the admission primitive: it takes one unit for the key when
// the current window's count is below limit, starting the window on first
// use, and reports whether the unit was taken. The compare and the bump are
// a single atomic step per key, including across gateway instances sharing
// one backend, so the stored count never passes the limit no matter how
// calls interleave.
//
// Release gives back one unit taken by Increment in the current window,
// flooring at zero. The limiter uses it to undo the first key's take when
// the second key of a dual-key admission denies.
type RateLimitStore interface {
	Get(ctx context.Context, key string) (*models.RateLimitState, error)
	Set(ctx context.Context, key string, state models.RateLimitState, ttl time.Duration) error
	Increment(ctx context.Context, key string, window time.Duration, limit int64) (*models.RateLimitState, bool, error)
	Release(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ConnectionDecrementer is an optional capability of a RateLimitStore.
// The in-memory backend implements it so connection counters can be released
// on close; the Redis backend deliberately does not and relies on window
// expiry instead.
type ConnectionDecrementer interface {
	Decrement(ctx context.Context, key string) error
}
