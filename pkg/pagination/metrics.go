package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageFetches tracks page fetches by kind (initial, append) and outcome (success, error)
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_page_fetches_total",
			Help: "Total number of page fetches",
		},
		[]string{"kind", "outcome"},
	)

	// PageFetchDuration tracks fetch latency by kind
	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_page_fetch_duration_seconds",
			Help:    "Page fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)

	// StaleResults tracks results discarded because their data source was retired
	StaleResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_stale_results_total",
			Help: "Total number of results discarded from retired data sources",
		},
	)

	// DroppedRequests tracks load requests ignored by a data source
	DroppedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_dropped_requests_total",
			Help: "Total number of load requests ignored by a data source",
		},
		[]string{"reason"}, // "in_flight", "exhausted", "retired", "not_started"
	)

	// StoreOperations tracks cache synchronizer store calls
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_store_operations_total",
			Help: "Total number of store operations issued by cache-mode listings",
		},
		[]string{"operation", "outcome"}, // "replace", "clear", "write", "read"
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
