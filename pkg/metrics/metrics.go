// Package metrics exports the Prometheus metrics registered by igdump.
// All metrics are defined in their respective packages (client, pagination,
// enrich, cache, sink) to maintain modularity and avoid circular dependencies.
//
// igdump is a one-shot command, so instead of serving /metrics it can write the
// final counter values to a node_exporter textfile at exit.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer reads back every metric registered via promauto, which uses the
// default Prometheus registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format. The file is written atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is required")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - igdump_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - igdump_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - igdump_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Pipeline Metrics:
//   - igdump_pages_fetched_total (Counter, pkg/pagination): Following pages fetched
//   - igdump_profiles_enriched_total (Counter, pkg/enrich): Profiles looked up
//   - igdump_rows_written_total{sink} (Counter, pkg/sink): Records written by sink kind
//
// Cache Metrics (pkg/cache):
//   - igdump_cache_hits_total (Counter): Profiles served from Redis
//   - igdump_cache_misses_total (Counter): Profiles fetched upstream
//   - igdump_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(igdump_cache_hits_total) /
//   (sum(igdump_cache_hits_total) + sum(igdump_cache_misses_total))
//
//   # Rate limited runs
//   igdump_errors_total{class="rate_limit"} > 0
//
//   # P95 Request Latency
//   histogram_quantile(0.95, sum by (le) (igdump_request_duration_seconds_bucket))
