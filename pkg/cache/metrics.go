package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"}, // "memory", "disk", "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menu_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks LRU evictions and size trims
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_cache_evictions_total",
			Help: "Total number of entries evicted to honour size limits",
		},
		[]string{"tier"},
	)

	// CacheExpired tracks entries dropped because their TTL passed
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_cache_expired_total",
			Help: "Total number of expired cache entries removed",
		},
		[]string{"tier"},
	)

	// CacheErrors tracks swallowed cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menu_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "remove", "clear", "sweep"
	)
)
