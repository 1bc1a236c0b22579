// Package metrics exposes the Prometheus metrics of the legislation client.
// The metrics themselves are defined in the packages that record them
// (client, cache, ratelimit) and registered via promauto.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer the legis_* metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the registered metrics.
var Gatherer = prometheus.DefaultGatherer

// Prefix starts every metric name owned by this module.
const Prefix = "legis_"

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names returns the names of the registered legis_* metric families.
func Names() ([]string, error) {
	families, err := Gatherer.Gather()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), Prefix) {
			names = append(names, mf.GetName())
		}
	}
	return names, nil
}

// Metrics reference
//
// Rate limit (pkg/ratelimit):
//   - legis_ratelimit_remaining (Gauge): requests remaining in the current window
//   - legis_ratelimit_blocks_total (Counter): requests blocked until the window resets
//   - legis_ratelimit_throttles_total (Counter): requests delayed while few remain
//
// Cache (pkg/cache):
//   - legis_cache_hits_total{freshness} (Counter): hits by fresh or stale
//   - legis_cache_misses_total (Counter)
//   - legis_cache_entry_size_bytes (Histogram): stored body sizes
//   - legis_304_responses_total (Counter): revalidations answered with 304
//   - legis_conditional_requests_total (Counter): requests sent with If-None-Match
//   - legis_cache_errors_total{operation} (Counter)
//
// Requests (pkg/client):
//   - legis_requests_total{endpoint, status} (Counter)
//   - legis_request_duration_seconds{endpoint} (Histogram)
//   - legis_errors_total{class} (Counter): client, server, rate_limit, network
//   - legis_circuit_breaker_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//   - legis_retries_total{error_class} (Counter)
//   - legis_retry_backoff_seconds{error_class} (Histogram)
//   - legis_retry_exhausted_total{error_class} (Counter)
//
// Example queries:
//
//	# Cache hit rate
//	sum(rate(legis_cache_hits_total[5m])) /
//	(sum(rate(legis_cache_hits_total[5m])) + sum(rate(legis_cache_misses_total[5m])))
//
//	# Rate limit nearly exhausted
//	legis_ratelimit_remaining < 10
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(legis_request_duration_seconds_bucket[5m]))
