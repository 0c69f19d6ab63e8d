// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection metrics
	RecordsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegishive_records_classified_total",
			Help: "Telemetry records classified, by ingress source and verdict",
		},
		[]string{"source", "verdict"},
	)

	ClassifyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_classify_errors_total",
			Help: "Classification attempts that failed (model unavailable or bad vector)",
		},
	)

	// Forensic reporter metrics
	ForensicCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_forensic_calls_total",
			Help: "Outbound forensic analysis calls attempted",
		},
	)

	ForensicFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_forensic_failures_total",
			Help: "Forensic calls that exhausted all endpoints and fell back",
		},
	)

	ForensicLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aegishive_forensic_latency_seconds",
			Help:    "End-to-end latency of forensic analysis calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Watcher metrics
	WatcherFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegishive_watcher_files_total",
			Help: "Telemetry files consumed by the directory watcher, by outcome",
		},
		[]string{"outcome"},
	)

	WatcherRowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_watcher_rows_skipped_total",
			Help: "Malformed telemetry rows skipped during file ingestion",
		},
	)

	// Endpoint metrics
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_auth_failures_total",
			Help: "Submission requests rejected for a bad API key",
		},
	)

	// Ledger metrics
	LedgerEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aegishive_ledger_evictions_total",
			Help: "Detection events evicted from the history ledger at capacity",
		},
	)
)
