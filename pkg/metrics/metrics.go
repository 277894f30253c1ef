// Package metrics exposes the Prometheus metrics of the menu client.
// All metrics are defined in their respective packages (cache, client,
// recovery, ratelimit, connectivity) and registered via promauto on the
// default registry; this package documents them and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - menu_cache_hits_total{tier} (Counter): Cache hits by tier (memory, disk, redis)
//   - menu_cache_misses_total (Counter): Cache misses
//   - menu_cache_evictions_total{tier} (Counter): Entries evicted to honour size limits
//   - menu_cache_expired_total{tier} (Counter): Expired entries removed
//   - menu_cache_errors_total{operation} (Counter): Swallowed cache operation errors
//
// Request Metrics (pkg/client):
//   - menu_requests_total{method, status} (Counter): Requests by method and outcome
//   - menu_request_duration_seconds{method} (Histogram): Request duration by method
//   - menu_errors_total{category} (Counter): Pipeline errors by error category
//
// Recovery Metrics (pkg/recovery):
//   - menu_recovery_attempts_total{category} (Counter): Recovery attempts by category
//   - menu_recovery_exhausted_total{category} (Counter): Errors refused after the attempt budget
//
// Rate Limit Metrics (pkg/ratelimit):
//   - menu_rate_limit_blocks_total (Counter): Requests rejected inside a Retry-After window
//   - menu_rate_limit_backoffs_total (Counter): 429 responses that opened a window
//   - menu_rate_limit_backoff_seconds (Gauge): Length of the latest window
//
// Connectivity Metrics (pkg/connectivity):
//   - menu_connectivity_up (Gauge): 1 if the last probe succeeded
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(menu_cache_hits_total[5m])) /
//   (sum(rate(menu_cache_hits_total[5m])) + sum(rate(menu_cache_misses_total[5m])))
//
//   # Errors by category
//   sum by (category) (rate(menu_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(menu_request_duration_seconds_bucket[5m]))
//
//   # Exhausted recoveries
//   increase(menu_recovery_exhausted_total[1h]) > 0

// Names lists every metric the module registers.
var Names = []string{
	"menu_cache_hits_total",
	"menu_cache_misses_total",
	"menu_cache_evictions_total",
	"menu_cache_expired_total",
	"menu_cache_errors_total",
	"menu_requests_total",
	"menu_request_duration_seconds",
	"menu_errors_total",
	"menu_recovery_attempts_total",
	"menu_recovery_exhausted_total",
	"menu_rate_limit_blocks_total",
	"menu_rate_limit_backoffs_total",
	"menu_rate_limit_backoff_seconds",
	"menu_connectivity_up",
}

// Handler serves the metrics of gatherer in the Prometheus text format.
// A nil gatherer selects the default registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
