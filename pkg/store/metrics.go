package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrors tracks failed store operations by backend
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_store_errors_total",
			Help: "Total number of failed listing store operations",
		},
		[]string{"backend", "operation"}, // "redis", "postgres"; "write", "clear", "read", "replace"
	)

	// BytesWritten tracks encoded payload bytes written by backend
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_store_bytes_written_total",
			Help: "Total number of encoded item bytes written to listing stores",
		},
		[]string{"backend"},
	)

	// ItemsRead tracks items returned by store reads
	ItemsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_store_items_read_total",
			Help: "Total number of items read from listing stores",
		},
		[]string{"backend"},
	)
)
