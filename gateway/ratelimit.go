package gateway

import (
	"context"
	"math"
	"time"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/interfaces"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// RateLimitExceededMessage is the stable denial text for an exhausted quota.
const RateLimitExceededMessage = "Rate limit exceeded"

// RateLimiter enforces fixed-window quotas over a pluggable store.
//
// Every admission decision is made by the store's atomic Increment, which
// takes a unit only while the count is below the quota. That keeps the quota
// a hard ceiling even when several gateway instances share one external
// store, and means no limiter lock is held across a store call.
//
// Connection admission evaluates two independent keys (per user, per IP) and
// admits only when both takes succeed; when the second key denies, the first
// key's unit is released again so a denied attempt moves neither counter.
// Message admission uses one key per (connection, message type) so
// exhausting one type never affects another.
type RateLimiter struct {
	cfg    Config
	store  interfaces.RateLimitStore
	dec    interfaces.ConnectionDecrementer
	logger interfaces.Logger
}

// NewRateLimiter builds a limiter over the given store. When the store
// supports connection decrements (the in-memory backend does) they are used
// to release admission counters on close; otherwise released capacity comes
// back with the next window.
func NewRateLimiter(cfg Config, store interfaces.RateLimitStore, logger interfaces.Logger) *RateLimiter {
	l := &RateLimiter{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	if dec, ok := store.(interfaces.ConnectionDecrementer); ok {
		l.dec = dec
	}
	return l
}

// Stop tears down the underlying store's background work, if any.
func (l *RateLimiter) Stop() {
	if s, ok := l.store.(interface{ Stop() }); ok {
		s.Stop()
	}
}

// Key builders for the limiter's namespaced store keys. Exported so
// administrative callers can target ResetRateLimit / GetRateLimitStatus.
func ConnectionUserKey(userID string) string { return "conn:user:" + userID }
func ConnectionIPKey(ip string) string       { return "conn:ip:" + ip }
func MessageKey(connectionID, messageType string) string {
	return "msg:" + connectionID + ":" + messageType
}

// CheckConnectionRateLimit admits a new connection for the given user and IP.
// Both quotas must have headroom; the reported remaining is the minimum of
// the two. A denial on either key leaves both counters where they were.
func (l *RateLimiter) CheckConnectionRateLimit(ctx context.Context, userID, ip string) (models.RateLimitResult, error) {
	userKey := ConnectionUserKey(userID)
	userQuota := l.cfg.UserConnectionQuota

	userState, userTaken, err := l.store.Increment(ctx, userKey, userQuota.Window, userQuota.MaxRequests)
	if err != nil {
		return models.RateLimitResult{}, err
	}
	if !userTaken {
		return deniedResult(userState), nil
	}

	ipQuota := l.cfg.IPConnectionQuota
	ipState, ipTaken, err := l.store.Increment(ctx, ConnectionIPKey(ip), ipQuota.Window, ipQuota.MaxRequests)
	if err != nil {
		l.rollback(ctx, userKey)
		return models.RateLimitResult{}, err
	}
	if !ipTaken {
		// The user unit was taken but the attempt is denied; give it back
		// so a denial on one key increments neither.
		l.rollback(ctx, userKey)
		return deniedResult(ipState), nil
	}

	result := admittedResult(userState, userQuota)
	if ipResult := admittedResult(ipState, ipQuota); ipResult.Remaining < result.Remaining {
		result = ipResult
	}
	return result, nil
}

// CheckMessageRateLimit admits one inbound message of the given type on a
// connection. The quota is resolved by message type with a default fallback.
func (l *RateLimiter) CheckMessageRateLimit(ctx context.Context, connectionID, messageType string) (models.RateLimitResult, error) {
	quota := l.cfg.messageQuota(messageType)

	state, taken, err := l.store.Increment(ctx, MessageKey(connectionID, messageType), quota.Window, quota.MaxRequests)
	if err != nil {
		return models.RateLimitResult{}, err
	}
	if !taken {
		return deniedResult(state), nil
	}
	return admittedResult(state, quota), nil
}

// ReleaseConnection gives back the admission units taken for a closed
// connection. Best effort: only stores with decrement support participate.
func (l *RateLimiter) ReleaseConnection(ctx context.Context, userID, ip string) {
	if l.dec == nil {
		return
	}

	if err := l.dec.Decrement(ctx, ConnectionUserKey(userID)); err != nil {
		l.logger.Error(ctx, "Failed to release user connection counter: %v", err)
	}
	if err := l.dec.Decrement(ctx, ConnectionIPKey(ip)); err != nil {
		l.logger.Error(ctx, "Failed to release ip connection counter: %v", err)
	}
}

// ResetRateLimit clears a key's raw state, bypassing window logic.
func (l *RateLimiter) ResetRateLimit(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// GetRateLimitStatus reads a key's raw state, bypassing window logic.
// Returns nil for an unknown or expired key.
func (l *RateLimiter) GetRateLimitStatus(ctx context.Context, key string) (*models.RateLimitState, error) {
	return l.store.Get(ctx, key)
}

func (l *RateLimiter) rollback(ctx context.Context, key string) {
	if err := l.store.Release(ctx, key); err != nil {
		l.logger.Error(ctx, "Failed to roll back admission unit for %s: %v", key, err)
	}
}

// admittedResult reports the headroom the attempt saw: the returned state
// already includes this attempt's unit, so remaining counts it back in.
func admittedResult(state *models.RateLimitState, quota RateLimitQuota) models.RateLimitResult {
	remaining := quota.MaxRequests - state.Count + 1
	if remaining < 0 {
		remaining = 0
	}
	return models.RateLimitResult{
		Allowed:   true,
		Remaining: remaining,
		ResetTime: state.ResetTime,
	}
}

func deniedResult(state *models.RateLimitState) models.RateLimitResult {
	return models.RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		ResetTime:  state.ResetTime,
		RetryAfter: retryAfterSeconds(time.Now(), state.ResetTime),
	}
}

func retryAfterSeconds(now, resetTime time.Time) int64 {
	seconds := int64(math.Ceil(resetTime.Sub(now).Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
