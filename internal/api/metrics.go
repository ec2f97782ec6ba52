package api

import "github.com/prometheus/client_golang/prometheus"

// Collectors for the sub-batch fan-out. The skip-and-continue policy means a
// call can silently return partial data; these counters are the only place
// that loss is visible, so the entrypoint must register them.
var (
	SubBatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivacity_sub_batch_requests_total",
			Help: "Sub-batch requests issued to the Vivacity API.",
		},
		[]string{"endpoint"},
	)

	SubBatchSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivacity_sub_batch_skipped_total",
			Help: "Failed sub-batches skipped under the best-effort policy.",
		},
		[]string{"endpoint"},
	)

	RecordsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivacity_records_fetched_total",
			Help: "Records parsed from Vivacity API responses.",
		},
		[]string{"endpoint"},
	)
)
