package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cache keys in a shared Redis database.
const DefaultRedisPrefix = "menu-cache:"

// scanBatch is the COUNT hint used when iterating the key space.
const scanBatch = 100

// RedisTier stores entries in Redis. Keys get a native TTL derived from the
// entry's ExpiresAt, so Redis drops them on its own; RemoveExpired only has to
// deal with leftovers that are expired by the store clock or corrupted.
type RedisTier struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisTier creates a Redis backed tier.
func NewRedisTier(client redis.UniversalClient, prefix string) *RedisTier {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisTier{
		redis:  client,
		prefix: prefix,
	}
}

// Name implements Tier.
func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) redisKey(key string) string {
	return r.prefix + key
}

// Load implements Tier.
func (r *RedisTier) Load(ctx context.Context, key string) (*Entry, error) {
	data, err := r.redis.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

// Save implements Tier. The Redis expiry is the entry's lifetime
// (ExpiresAt - CreatedAt); entries without a positive lifetime are not written.
func (r *RedisTier) Save(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.ExpiresAt.Sub(entry.CreatedAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := r.redis.Set(ctx, r.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Tier.
func (r *RedisTier) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear implements Tier. Only keys under the tier prefix are removed.
func (r *RedisTier) Clear(ctx context.Context) error {
	return r.scan(ctx, func(keys []string) error {
		if err := r.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	})
}

// RemoveExpired implements Tier.
func (r *RedisTier) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := r.scan(ctx, func(keys []string) error {
		values, err := r.redis.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}

		var stale []string
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				// Expired between SCAN and MGET.
				continue
			}
			var entry Entry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.ExpiresAt.Before(now) {
				stale = append(stale, keys[i])
			}
		}
		if len(stale) == 0 {
			return nil
		}

		n, err := r.redis.Del(ctx, stale...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
		return nil
	})
	return removed, err
}

// Usage implements Tier. Bytes is the sum of the stored value lengths.
func (r *RedisTier) Usage(ctx context.Context) (Usage, error) {
	var usage Usage
	err := r.scan(ctx, func(keys []string) error {
		pipe := r.redis.Pipeline()
		lengths := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			lengths[i] = pipe.StrLen(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis strlen: %w", err)
		}
		for _, l := range lengths {
			if n := l.Val(); n > 0 {
				usage.Entries++
				usage.Bytes += n
			}
		}
		return nil
	})
	return usage, err
}

// scan calls fn with batches of keys under the tier prefix.
func (r *RedisTier) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
