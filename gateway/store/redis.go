package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

const redisKeyPrefix = "wsgw:rl:"

// incrScript compares against the limit and bumps the counter in one atomic
// step, starting the window TTL on first use. It returns the count, the
// remaining TTL in milliseconds and whether the unit was taken. Doing the
// compare inside the script means two gateway instances racing on the same
// key can never push the count past the limit.
var incrScript = redis.NewScript(`
local limit = tonumber(ARGV[2])
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= limit then
    local ttl = redis.call("PTTL", KEYS[1])
    return {count, ttl, 0}
end
count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl, 1}
`)

// releaseScript undoes one increment, guarded so a key that expired between
// the increment and the release is left alone and the count never goes
// negative.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count > 0 then
    redis.call("DECR", KEYS[1])
end
return count
`)

// RedisStore is the external RateLimitStore backend for multi-instance
// deployments. State is persisted with a TTL equal to the window so expired
// keys self-evict; there is no decrement on connection close, released
// capacity comes back with the next window (documented limitation). Release
// only rolls back a unit taken moments earlier by Increment.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.RateLimitState, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, redisKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, redisKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	count, err := getCmd.Int64()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		// Key exists without a TTL; treat as expired rather than pinning
		// the counter forever.
		return nil, nil
	}

	return &models.RateLimitState{
		Count:     count,
		ResetTime: time.Now().Add(ttl),
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, state models.RateLimitState, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, state.Count, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, limit int64) (*models.RateLimitState, bool, error) {
	res, err := incrScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, window.Milliseconds(), limit).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("redis incr %q: %w", key, err)
	}
	if len(res) != 3 {
		return nil, false, fmt.Errorf("redis incr %q: unexpected reply %v", key, res)
	}

	count, _ := res[0].(int64)
	ttlMs, _ := res[1].(int64)
	taken, _ := res[2].(int64)
	return &models.RateLimitState{
		Count:     count,
		ResetTime: time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
	}, taken == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{redisKeyPrefix + key}).Err(); err != nil {
		return fmt.Errorf("redis release %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.PExpire(ctx, redisKeyPrefix+key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
