package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meal struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func newTestStore(t *testing.T) (*Store, *DiskTier, *clock.Mock) {
	t.Helper()
	disk := newTestDiskTier(t)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	store := NewStore(Options{
		Persistent: disk,
		Clock:      mock,
	})
	return store, disk, mock
}

func TestStore_PutGet(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", meal{Name: "Pasta", Price: 3.5}, DefaultPolicy)

	var got meal
	require.True(t, store.Get(ctx, "k", &got))
	assert.Equal(t, meal{Name: "Pasta", Price: 3.5}, got)

	stats := store.Stats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, 1, stats.MemoryEntries)
	assert.Equal(t, 1, stats.DiskEntries)
}

func TestStore_GetAs(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "meals", []meal{{Name: "Soup"}}, ShortTermPolicy)

	got, ok := GetAs[[]meal](ctx, store, "meals")
	require.True(t, ok)
	assert.Equal(t, []meal{{Name: "Soup"}}, got)

	_, ok = GetAs[[]meal](ctx, store, "other")
	assert.False(t, ok)
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	store, disk, mock := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "value", ShortTermPolicy)

	mock.Add(5 * time.Minute)
	var got string
	assert.True(t, store.Get(ctx, "k", &got), "entry is still valid at exactly ExpiresAt")

	mock.Add(time.Second)
	assert.False(t, store.Get(ctx, "k", &got))

	// Expired entries are removed lazily from both tiers.
	_, err := disk.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Stats(ctx).MemoryEntries)
}

func TestStore_ReadsDoNotExtendExpiry(t *testing.T) {
	store, _, mock := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", 42, ShortTermPolicy)

	var got int
	for i := 0; i < 4; i++ {
		mock.Add(time.Minute)
		require.True(t, store.Get(ctx, "k", &got))
	}

	mock.Add(2 * time.Minute)
	assert.False(t, store.Get(ctx, "k", &got))
}

func TestStore_PromotesFromPersistentTier(t *testing.T) {
	store, disk, mock := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "value", DefaultPolicy)

	// A second store over the same directory starts with a cold memory tier.
	cold := NewStore(Options{Persistent: disk, Clock: mock})
	assert.Equal(t, 0, cold.Stats(ctx).MemoryEntries)

	var got string
	require.True(t, cold.Get(ctx, "k", &got))
	assert.Equal(t, "value", got)
	assert.Equal(t, 1, cold.Stats(ctx).MemoryEntries)
}

func TestStore_MissCounting(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	var got string
	assert.False(t, store.Get(ctx, "missing", &got))
	assert.False(t, store.Get(ctx, "missing", &got))

	store.Put(ctx, "k", "v", DefaultPolicy)
	assert.True(t, store.Get(ctx, "k", &got))

	stats := store.Stats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRate(), 0.0001)
}

func TestStore_DecodeFailureIsMissAndRemoves(t *testing.T) {
	store, disk, _ := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "not a number", DefaultPolicy)

	var got int
	assert.False(t, store.Get(ctx, "k", &got))

	_, err := disk.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), store.Stats(ctx).Misses)
}

func TestStore_Remove(t *testing.T) {
	store, disk, _ := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "k", "v", DefaultPolicy)
	store.Remove(ctx, "k")
	store.Remove(ctx, "k")

	var got string
	assert.False(t, store.Get(ctx, "k", &got))
	_, err := disk.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ClearResetsCounters(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "a", 1, DefaultPolicy)
	store.Put(ctx, "b", 2, DefaultPolicy)
	var got int
	store.Get(ctx, "a", &got)
	store.Get(ctx, "missing", &got)

	store.Clear(ctx)

	assert.Equal(t, Stats{}, store.Stats(ctx))
	assert.Equal(t, 0.0, store.Stats(ctx).HitRate())
}

func TestStore_CancelledContext(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store.Put(ctx, "k", "v", DefaultPolicy)

	var got string
	assert.False(t, store.Get(ctx, "k", &got))

	stats := store.Stats(context.Background())
	assert.Equal(t, 0, stats.MemoryEntries, "cancelled put must not write")
	assert.Equal(t, 0, stats.DiskEntries)
	assert.Equal(t, int64(0), stats.Hits+stats.Misses, "cancelled get is not counted")
}

func TestStore_SweepExpired(t *testing.T) {
	store, _, mock := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "short", 1, ShortTermPolicy)
	store.Put(ctx, "long", 2, LongTermPolicy)

	mock.Add(10 * time.Minute)

	assert.Equal(t, 1, store.SweepExpired(ctx))

	stats := store.Stats(ctx)
	assert.Equal(t, 1, stats.DiskEntries)
	assert.Equal(t, 1, stats.MemoryEntries)
}

func TestStore_SweepTrimsDiskBudget(t *testing.T) {
	disk := newTestDiskTier(t)
	store := NewStore(Options{
		Persistent: disk,
		Limits:     Policy{MaxMemoryBytes: DefaultPolicy.MaxMemoryBytes, MaxDiskBytes: 1},
	})
	ctx := context.Background()

	store.Put(ctx, "a", "x", DefaultPolicy)
	store.Put(ctx, "b", "y", DefaultPolicy)

	assert.Equal(t, 0, store.SweepExpired(ctx))

	stats := store.Stats(ctx)
	assert.Equal(t, 0, stats.DiskEntries)
	assert.Equal(t, int64(2), stats.Evictions)
}

func TestStore_MemoryEvictionsCounted(t *testing.T) {
	store := NewStore(Options{MemoryEntries: 2})
	ctx := context.Background()

	store.Put(ctx, "a", 1, DefaultPolicy)
	store.Put(ctx, "b", 2, DefaultPolicy)
	store.Put(ctx, "c", 3, DefaultPolicy)

	stats := store.Stats(ctx)
	assert.Equal(t, 2, stats.MemoryEntries)
	assert.Equal(t, int64(1), stats.Evictions)

	var got int
	assert.False(t, store.Get(ctx, "a", &got), "memory-only store loses evicted entries")
}

func TestStore_OversizedValueSkipsMemory(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	tiny := Policy{Name: "tiny", TTL: time.Hour, MaxMemoryBytes: 8, MaxDiskBytes: 1024}
	store.Put(ctx, "big", "a value larger than eight bytes", tiny)

	stats := store.Stats(ctx)
	assert.Equal(t, 0, stats.MemoryEntries)
	assert.Equal(t, 1, stats.DiskEntries)
}

func TestStore_ValueOverStoreLimitKeepsMemoryTier(t *testing.T) {
	mock := clock.NewMock()
	store := NewStore(Options{
		Persistent: newTestDiskTier(t),
		Limits:     Policy{MaxMemoryBytes: 1000, MaxDiskBytes: 1 << 20},
		Clock:      mock,
	})
	ctx := context.Background()

	store.Put(ctx, "a", 1, DefaultPolicy)
	store.Put(ctx, "b", 2, DefaultPolicy)
	store.Put(ctx, "c", 3, DefaultPolicy)
	store.Put(ctx, "big", strings.Repeat("x", 2000), DefaultPolicy)

	stats := store.Stats(ctx)
	assert.Equal(t, 3, stats.MemoryEntries)
	assert.Equal(t, int64(0), stats.Evictions)
	assert.Equal(t, 4, stats.DiskEntries)

	var n int
	assert.True(t, store.Get(ctx, "a", &n))
	assert.Equal(t, 1, n)

	var big string
	require.True(t, store.Get(ctx, "big", &big), "served from the persistent tier")
	assert.Len(t, big, 2000)
	assert.Equal(t, 3, store.Stats(ctx).MemoryEntries, "oversized hit is not promoted")
}

// failingTier fails every operation.
type failingTier struct{}

var errTierDown = errors.New("tier down")

func (failingTier) Name() string { return "failing" }
func (failingTier) Load(context.Context, string) (*Entry, error) {
	return nil, errTierDown
}
func (failingTier) Save(context.Context, string, *Entry) error { return errTierDown }
func (failingTier) Delete(context.Context, string) error        { return errTierDown }
func (failingTier) Clear(context.Context) error                 { return errTierDown }
func (failingTier) RemoveExpired(context.Context, time.Time) (int, error) {
	return 0, errTierDown
}
func (failingTier) Usage(context.Context) (Usage, error) { return Usage{}, errTierDown }

func TestStore_FailOpen(t *testing.T) {
	store := NewStore(Options{Persistent: failingTier{}})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		store.Put(ctx, "k", "v", DefaultPolicy)
		store.Remove(ctx, "other")
		store.SweepExpired(ctx)
		store.Stats(ctx)
	})

	// The memory tier still serves the value.
	var got string
	assert.True(t, store.Get(ctx, "k", &got))

	// A persistent failure degrades to a miss.
	assert.False(t, store.Get(ctx, "other", &got))

	// Unserializable values are dropped silently.
	store.Put(ctx, "fn", func() {}, DefaultPolicy)
	assert.False(t, store.Get(ctx, "fn", &got))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Put(ctx, "shared", n, DefaultPolicy)
				var got int
				store.Get(ctx, "shared", &got)
			}
		}(i)
	}
	wg.Wait()

	var got int
	assert.True(t, store.Get(ctx, "shared", &got))
	assert.GreaterOrEqual(t, got, 0)
	assert.Less(t, got, 8)
}
