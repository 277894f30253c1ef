// Package cache provides the two-tier (memory + persistent) cache used by the
// request pipeline and the menu repository.
//
// Features:
//
// - Fixed per-entry TTL chosen through a Policy (reads never extend it)
// - LRU memory tier bounded by entry count and bytes
// - Persistent tier on disk (one JSON file per key) or in Redis
// - Read-through promotion from the persistent tier into memory
// - Hit/miss/eviction statistics and Prometheus metrics
// - Fail-open: tier errors are logged and never reach the caller
//
// # Basic Usage
//
//	disk, err := cache.NewDiskTier(filepath.Join(os.TempDir(), "menu-cache"))
//	if err != nil {
//		return err
//	}
//
//	store := cache.NewStore(cache.Options{
//		Persistent: disk,
//		Logger:     logging.NewLogger("cache"),
//	})
//
//	key := cache.MenuKey(userID, campusID, day)
//	store.Put(ctx, key, meals, cache.ShortTermPolicy)
//
//	var cached []Meal
//	if store.Get(ctx, key, &cached) {
//		// served from cache
//	}
//
// # Shared Cache
//
// Several processes can share one cache through Redis:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewStore(cache.Options{
//		Persistent: cache.NewRedisTier(rdb, cache.DefaultRedisPrefix),
//	})
//
// # Maintenance
//
// SweepExpired removes expired entries and trims the disk tier to the
// configured byte budget; call it periodically or on startup.
//
// # Metrics
//
// The following Prometheus metrics are exposed:
//
// - menu_cache_hits_total{tier}: Cache hits per tier
// - menu_cache_misses_total: Cache misses
// - menu_cache_evictions_total{tier}: Entries evicted to honour size limits
// - menu_cache_expired_total{tier}: Expired entries removed
// - menu_cache_errors_total{operation}: Swallowed tier errors
package cache
