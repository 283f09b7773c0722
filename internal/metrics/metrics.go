// Package metrics holds the Prometheus collectors of the initiative syncer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the "outcome" label of SyncRuns.
const (
	OutcomeSynced    = "synced"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped_lock"
	OutcomeFailed    = "failed"
)

var (
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "initiative_sync_runs_total",
			Help: "Total number of sync attempts by outcome",
		},
		[]string{"outcome"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "initiative_sync_duration_seconds",
			Help:    "Duration of sync attempts in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "initiative_sync_last_success_timestamp",
			Help: "Unix timestamp of the last completed full sync",
		},
	)

	CatalogTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "initiative_catalog_total",
			Help: "Item count reported by the remote catalog on the last check",
		},
	)

	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "initiative_catalog_pages_fetched_total",
			Help: "Total number of catalog pages fetched",
		},
	)

	PageFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "initiative_catalog_page_errors_total",
			Help: "Total number of failed catalog page fetches",
		},
		[]string{"reason"}, // "status", "network", "circuit_open", "decode"
	)

	RecordsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "initiative_records_upserted_total",
			Help: "Total number of initiative records inserted or modified",
		},
	)

	BulkBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "initiative_bulk_batch_size",
			Help:    "Number of ops per bulk upsert",
			Buckets: []float64{1, 10, 50, 100, 250, 500},
		},
	)

	BulkOpFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "initiative_bulk_op_failures_total",
			Help: "Total number of upsert ops rejected by the store",
		},
	)

	LockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "initiative_sync_lock_acquisitions_total",
			Help: "Sync lock acquisition attempts by result",
		},
		[]string{"result"}, // "acquired", "contended", "error"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "initiative_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
