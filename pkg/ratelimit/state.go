// Package ratelimit honours the backend's Retry-After header. After a 429
// response every request fails fast with a rate-limit error until the
// back-off window has passed, so clients do not hammer a throttled API.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the shared back-off state.
const DefaultRedisKey = "menu:rate_limit:state"

// Back-off bounds.
const (
	// DefaultBackoff is used when a 429 response has no usable Retry-After header.
	DefaultBackoff = 30 * time.Second

	// MaxBackoff caps the window a single response can open.
	MaxBackoff = 10 * time.Minute
)

// State is the current back-off window.
type State struct {
	// BlockedUntil is the end of the back-off window. Zero means not blocked.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when the window was last opened.
	LastUpdate time.Time `json:"last_update"`
}

// Blocked reports whether requests must be held back at now.
func (s State) Blocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// Remaining returns the time left in the window, or 0 once it has passed.
func (s State) Remaining(now time.Time) time.Duration {
	if d := s.BlockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ParseRetryAfter parses a Retry-After value given as delay seconds or as an
// HTTP date. It returns false for empty or malformed values. Dates in the
// past yield a zero delay.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

// StateStore persists the back-off state.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// MemoryStore keeps the state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// Load implements StateStore.
func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save implements StateStore.
func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

// RedisStore shares the state between processes through Redis.
// The key expires together with the back-off window.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore creates a Redis-backed store. An empty key selects DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{redis: client, key: key}
}

// Load implements StateStore. A missing key is the zero state.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	data, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse rate limit state: %w", err)
	}
	return state, nil
}

// Save implements StateStore. Windows that are already closed delete the key.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	ttl := state.BlockedUntil.Sub(state.LastUpdate)
	if ttl <= 0 {
		if err := r.redis.Del(ctx, r.key).Err(); err != nil {
			return fmt.Errorf("delete rate limit state: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := r.redis.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
