// Package metrics registers the Prometheus instrumentation of the
// reconciliation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Reconciliation metrics
	ReconciliationsTotal   *prometheus.CounterVec
	ReconciliationDuration *prometheus.HistogramVec
	RowsWritten            *prometheus.CounterVec
	ConflictsTotal         *prometheus.CounterVec

	// Rollback metrics
	RollbacksTotal *prometheus.CounterVec
	RowsRolledBack *prometheus.CounterVec

	// Job metrics
	JobsActive prometheus.Gauge
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ReconciliationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fareacl_reconciliations_total",
				Help: "Total number of reconciliations processed",
			},
			[]string{"list", "outcome"},
		),

		ReconciliationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fareacl_reconciliation_duration_seconds",
				Help:    "Duration of reconciliation processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"list"},
		),

		RowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fareacl_rows_written_total",
				Help: "Total number of ledger rows written",
			},
			[]string{"list"},
		),

		ConflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fareacl_conflicts_total",
				Help: "Total number of conflicting rows excluded from write sets",
			},
			[]string{"list", "bucket"},
		),

		RollbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fareacl_rollbacks_total",
				Help: "Total number of version rollbacks",
			},
			[]string{"list", "outcome"},
		),

		RowsRolledBack: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fareacl_rows_rolled_back_total",
				Help: "Total number of rows deleted by rollbacks",
			},
			[]string{"list"},
		),

		JobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fareacl_jobs_active",
				Help: "Number of reconciliation jobs currently running",
			},
		),
	}
}
