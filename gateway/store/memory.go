package store

import (
	"context"
	"sync"
	"time"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

const DefaultSweepInterval = 30 * time.Second

// MemoryStore is the in-process RateLimitStore backend. It is correct for a
// single process only; multi-instance deployments should use RedisStore.
//
// A background sweep deletes entries whose TTL has elapsed so abandoned keys
// do not accumulate. The sweep holds the store mutex only while scanning.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	done     chan struct{}
	stopped  chan struct{} // signals sweep goroutine has exited
	stopOnce sync.Once     // prevents double-close panic
}

type memoryEntry struct {
	state     models.RateLimitState
	expiresAt time.Time
}

// NewMemoryStore creates an in-process store and starts its sweep goroutine.
// Call Stop when the store is no longer needed.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Stop stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	state := e.state
	return &state, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, state models.RateLimitState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{
		state:     state,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Increment takes one unit for key when the current window's count is below
// limit, starting a fresh window when the key is absent or its window has
// elapsed. The window's reset time is fixed at initialization and does not
// slide on later increments. Compare and bump happen under the store mutex
// so the count can never pass the limit.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration, limit int64) (*models.RateLimitState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.After(e.state.ResetTime) {
		if limit < 1 {
			return &models.RateLimitState{ResetTime: now.Add(window)}, false, nil
		}
		e = &memoryEntry{
			state: models.RateLimitState{
				Count:     1,
				ResetTime: now.Add(window),
			},
			expiresAt: now.Add(window),
		}
		s.entries[key] = e
		state := e.state
		return &state, true, nil
	}

	if e.state.Count >= limit {
		state := e.state
		return &state, false, nil
	}

	e.state.Count++
	state := e.state
	return &state, true, nil
}

// Release gives back one unit taken by Increment, flooring at zero.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.state.Count > 0 {
		e.state.Count--
	}
	return nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.expiresAt = time.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Decrement implements the optional ConnectionDecrementer capability: it
// returns a connection's admission units when the connection closes. Same
// semantics as Release; the Redis backend has no equivalent and relies on
// window expiry.
func (s *MemoryStore) Decrement(ctx context.Context, key string) error {
	return s.Release(ctx, key)
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
