// Package metrics exposes the Prometheus metrics of paged listings.
// All metrics are defined in their respective packages (pagination, store,
// httpfetch, executor) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and documentation for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by listings.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Paging Metrics (pkg/pagination):
//   - listing_page_fetches_total{kind, outcome} (Counter): Page fetches by kind (initial, append) and outcome
//   - listing_page_fetch_duration_seconds{kind} (Histogram): Page fetch duration by kind
//   - listing_stale_results_total (Counter): Results discarded because their data source was retired
//   - listing_dropped_requests_total{reason} (Counter): Load requests ignored (in_flight, exhausted, retired, not_started)
//   - listing_store_operations_total{operation, outcome} (Counter): Store calls issued by cache-mode listings
//
// Store Metrics (pkg/store):
//   - listing_store_errors_total{backend, operation} (Counter): Store errors by backend (redis, postgres)
//   - listing_store_bytes_written_total{backend} (Counter): Encoded bytes written
//   - listing_store_items_read_total{backend} (Counter): Items decoded on read
//
// Request Metrics (pkg/httpfetch):
//   - listing_http_requests_total{status} (Counter): Page requests by HTTP status
//   - listing_http_request_duration_seconds{host} (Histogram): Page request duration by host
//   - listing_http_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Executor Metrics (pkg/executor):
//   - listing_executor_tasks_total{executor} (Counter): Tasks run per executor
//   - listing_executor_queue_depth{executor} (Gauge): Tasks waiting for a worker
//   - listing_executor_panics_total{executor} (Counter): Recovered task panics
//
// Example Prometheus Queries:
//
//   # Page fetch error rate
//   sum(rate(listing_page_fetches_total{outcome="error"}[5m])) /
//   sum(rate(listing_page_fetches_total[5m]))
//
//   # Refreshes racing in-flight fetches
//   rate(listing_stale_results_total[5m])
//
//   # P95 page fetch latency
//   histogram_quantile(0.95, rate(listing_page_fetch_duration_seconds_bucket[5m]))
//
//   # Network executor backlog
//   listing_executor_queue_depth{executor=~".*-network"}
