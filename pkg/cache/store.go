package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DefaultMemoryEntries bounds the memory tier when Options.MemoryEntries is zero.
const DefaultMemoryEntries = 500

const memoryTierName = "memory"

// Options configures a Store.
type Options struct {
	// Persistent is the second tier. Nil makes the store memory-only.
	Persistent Tier

	// MemoryEntries is the memory tier's entry limit.
	MemoryEntries int

	// Limits caps the tiers as a whole: MaxMemoryBytes bounds the memory
	// tier, MaxDiskBytes is the budget SweepExpired trims the persistent
	// tier to. TTL is ignored. Defaults to DefaultPolicy.
	Limits Policy

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// Logger receives the swallowed tier errors. The zero value discards.
	Logger zerolog.Logger
}

// Store is the two-tier cache. It never returns errors to callers: tier
// failures are logged and counted, and the operation degrades to a miss or a
// skipped write.
//
// Store is safe for concurrent use. A single mutex guards the memory tier and
// the counters; persistent tier I/O happens outside of it.
type Store struct {
	mu     sync.Mutex
	memory *MemoryTier

	persistent Tier
	limits     Policy
	clock      clock.Clock
	logger     zerolog.Logger

	hits      int64
	misses    int64
	evictions int64
}

// NewStore creates a store.
func NewStore(opts Options) *Store {
	if opts.MemoryEntries <= 0 {
		opts.MemoryEntries = DefaultMemoryEntries
	}
	if opts.Limits.MaxMemoryBytes <= 0 && opts.Limits.MaxDiskBytes <= 0 {
		opts.Limits = DefaultPolicy
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Store{
		memory:     NewMemoryTier(opts.MemoryEntries, opts.Limits.MaxMemoryBytes),
		persistent: opts.Persistent,
		limits:     opts.Limits,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

// Put serializes value as JSON and stores it under key in both tiers with
// ExpiresAt = now + policy.TTL.
func (s *Store) Put(ctx context.Context, key string, value any, policy Policy) {
	if ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.fail("put", key, err)
		return
	}
	s.PutRaw(ctx, key, payload, policy)
}

// PutRaw stores an already serialized payload.
//
// Values larger than policy.MaxMemoryBytes, or than the store's own memory
// limit, only go to the persistent tier. The persistent write happens
// regardless of the memory tier outcome.
func (s *Store) PutRaw(ctx context.Context, key string, payload []byte, policy Policy) {
	if ctx.Err() != nil {
		return
	}
	if policy.TTL <= 0 {
		policy.TTL = DefaultPolicy.TTL
	}

	entry := newEntry(bytes.Clone(payload), s.clock.Now(), policy.TTL)
	persisted := *entry

	s.mu.Lock()
	if !s.fitsMemory(entry, policy) {
		s.memory.delete(key)
	} else {
		s.recordEvictions(s.memory.set(key, entry))
	}
	s.mu.Unlock()

	if s.persistent == nil {
		return
	}
	if err := s.persistent.Save(ctx, key, &persisted); err != nil {
		s.fail("put", key, err)
	}
}

// fitsMemory reports whether entry may enter the memory tier under both the
// per-call policy and the store limit. Zero limits do not apply.
func (s *Store) fitsMemory(entry *Entry, policy Policy) bool {
	size := entry.size()
	if policy.MaxMemoryBytes > 0 && size > policy.MaxMemoryBytes {
		return false
	}
	return s.limits.MaxMemoryBytes <= 0 || size <= s.limits.MaxMemoryBytes
}

// Get decodes the cached value for key into dst and reports whether it was
// found. Undecodable entries are removed and reported as a miss.
//
// A cancelled context performs no lookup and is neither a hit nor a miss.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	if ctx.Err() != nil {
		return false
	}

	payload, tier, ok := s.lookup(ctx, key)
	if ctx.Err() != nil {
		return false
	}

	if ok {
		if err := json.Unmarshal(payload, dst); err != nil {
			s.fail("get", key, err)
			s.Remove(ctx, key)
			ok = false
		}
	}

	s.record(ok, tier)
	return ok
}

// GetRaw returns a copy of the cached payload for key.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	payload, tier, ok := s.lookup(ctx, key)
	if ctx.Err() != nil {
		return nil, false
	}

	s.record(ok, tier)
	if !ok {
		return nil, false
	}
	return bytes.Clone(payload), true
}

// GetAs is the typed form of Store.Get.
func GetAs[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var value T
	ok := s.Get(ctx, key, &value)
	return value, ok
}

// lookup walks the tiers without touching the hit/miss counters.
func (s *Store) lookup(ctx context.Context, key string) ([]byte, string, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	if entry, ok := s.memory.get(key); ok {
		if !entry.IsExpiredAt(now) {
			entry.touch(now)
			payload := entry.Payload
			s.mu.Unlock()
			return payload, memoryTierName, true
		}
		s.memory.delete(key)
		CacheExpired.WithLabelValues(memoryTierName).Inc()
	}
	s.mu.Unlock()

	if s.persistent == nil {
		return nil, "", false
	}

	entry, err := s.persistent.Load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return nil, "", false
	case errors.Is(err, ErrInvalidEntry):
		s.fail("get", key, err)
		s.deletePersistent(ctx, key)
		return nil, "", false
	default:
		s.fail("get", key, err)
		return nil, "", false
	}

	if entry.IsExpiredAt(now) {
		CacheExpired.WithLabelValues(s.persistent.Name()).Inc()
		s.deletePersistent(ctx, key)
		return nil, "", false
	}

	entry.touch(now)
	s.mu.Lock()
	if s.fitsMemory(entry, s.limits) {
		s.recordEvictions(s.memory.set(key, entry))
	}
	payload := entry.Payload
	s.mu.Unlock()

	return payload, s.persistent.Name(), true
}

// Remove deletes key from both tiers. Removing a missing key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) {
	s.mu.Lock()
	s.memory.delete(key)
	s.mu.Unlock()

	s.deletePersistent(ctx, key)
}

// Clear empties both tiers and resets the hit, miss and eviction counters.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.memory.clear()
	s.hits, s.misses, s.evictions = 0, 0, 0
	s.mu.Unlock()

	if s.persistent == nil {
		return
	}
	if err := s.persistent.Clear(ctx); err != nil {
		s.fail("clear", "", err)
	}
}

// SweepExpired drops expired entries from both tiers and then trims the
// persistent tier to Limits.MaxDiskBytes, oldest writes first.
//
// It returns the number of expired entries removed from the persistent tier
// (or from memory, for a memory-only store).
func (s *Store) SweepExpired(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var stale []string
	for key, el := range s.memory.items {
		if el.Value.(*memoryItem).entry.IsExpiredAt(now) {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		s.memory.delete(key)
	}
	s.mu.Unlock()

	if len(stale) > 0 {
		CacheExpired.WithLabelValues(memoryTierName).Add(float64(len(stale)))
	}
	if s.persistent == nil {
		return len(stale)
	}

	removed, err := s.persistent.RemoveExpired(ctx, now)
	if err != nil {
		s.fail("sweep", "", err)
	}
	if removed > 0 {
		CacheExpired.WithLabelValues(s.persistent.Name()).Add(float64(removed))
	}

	if trimmer, ok := s.persistent.(Trimmer); ok && s.limits.MaxDiskBytes > 0 {
		trimmed, err := trimmer.Trim(ctx, s.limits.MaxDiskBytes)
		if err != nil {
			s.fail("sweep", "", err)
		}
		if trimmed > 0 {
			s.mu.Lock()
			s.evictions += int64(trimmed)
			s.mu.Unlock()
			CacheEvictions.WithLabelValues(s.persistent.Name()).Add(float64(trimmed))
		}
	}

	s.logger.Debug().
		Int("expired", removed).
		Int("memory_expired", len(stale)).
		Msg("Cache sweep finished")

	return removed
}

// Stats returns a snapshot of the tier sizes and counters.
func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	stats := Stats{
		MemoryEntries: s.memory.len(),
		MemoryBytes:   s.memory.size(),
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
	}
	s.mu.Unlock()

	if s.persistent != nil {
		usage, err := s.persistent.Usage(ctx)
		if err != nil {
			s.fail("stats", "", err)
		}
		stats.DiskEntries = usage.Entries
		stats.DiskBytes = usage.Bytes
	}
	return stats
}

func (s *Store) deletePersistent(ctx context.Context, key string) {
	if s.persistent == nil {
		return
	}
	if err := s.persistent.Delete(ctx, key); err != nil {
		s.fail("remove", key, err)
	}
}

// record updates the hit/miss counters.
func (s *Store) record(hit bool, tier string) {
	s.mu.Lock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()

	if hit {
		CacheHits.WithLabelValues(tier).Inc()
	} else {
		CacheMisses.Inc()
	}
}

// recordEvictions must be called with s.mu held.
func (s *Store) recordEvictions(n int) {
	if n == 0 {
		return
	}
	s.evictions += int64(n)
	CacheEvictions.WithLabelValues(memoryTierName).Add(float64(n))
}

// fail logs and counts a swallowed tier error.
func (s *Store) fail(operation, key string, err error) {
	CacheErrors.WithLabelValues(operation).Inc()
	s.logger.Warn().
		Err(err).
		Str("operation", operation).
		Str("key", key).
		Msg("Cache operation failed")
}
