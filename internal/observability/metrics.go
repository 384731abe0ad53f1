// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Reconciliation sweep metrics
	SweepRunsTotal       *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	PositionsSwept       prometheus.Counter
	SweepDecisions       *prometheus.CounterVec
	TransitionsRejected  prometheus.Counter
	SweepPositionErrors  prometheus.Counter
	OpenPositions        prometheus.Gauge
	LastSuccessfulSweep  prometheus.Gauge

	// Performance aggregation metrics
	LiquidationsProcessed prometheus.Counter
	PeriodRecordsCreated  *prometheus.CounterVec
	PeriodRecordsMerged   *prometheus.CounterVec
	PeriodUpdateFailures  *prometheus.CounterVec
	MergeConflicts        prometheus.Counter

	// Order feed metrics
	OrderEventsReceived prometheus.Counter
	FeedReconnects      prometheus.Counter

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "position_core"
	}

	return &Metrics{
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of reconciliation sweeps by status",
		}, []string{"status"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Reconciliation sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		PositionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "positions_swept_total",
			Help:      "Total number of open positions examined",
		}),
		SweepDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "decisions_total",
			Help:      "Total number of reconciliation decisions by action",
		}, []string{"action"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "transitions_rejected_total",
			Help:      "Total number of transition attempts rejected by the state machine",
		}),
		SweepPositionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "position_errors_total",
			Help:      "Total number of per-position sweep errors",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "open_positions",
			Help:      "Number of non-terminal positions seen by the last sweep",
		}),
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful sweep",
		}),

		LiquidationsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "performance",
			Name:      "liquidations_processed_total",
			Help:      "Total number of liquidation events folded into performance stats",
		}),
		PeriodRecordsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "performance",
			Name:      "records_created_total",
			Help:      "Total number of period records created, by period",
		}, []string{"period"}),
		PeriodRecordsMerged: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "performance",
			Name:      "records_merged_total",
			Help:      "Total number of period records merged into, by period",
		}, []string{"period"}),
		PeriodUpdateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "performance",
			Name:      "period_update_failures_total",
			Help:      "Total number of per-period update failures, by period",
		}, []string{"period"}),
		MergeConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "performance",
			Name:      "merge_conflicts_total",
			Help:      "Total number of compare-and-swap conflicts during merges",
		}),

		OrderEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderfeed",
			Name:      "events_received_total",
			Help:      "Total number of order events received from the feed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderfeed",
			Name:      "reconnects_total",
			Help:      "Total number of order feed reconnect attempts",
		}),

		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_errors_total",
			Help:      "Total number of store operation errors",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSweepDecision increments the decision counter for an action.
func RecordSweepDecision(action string) {
	DefaultMetrics.SweepDecisions.WithLabelValues(action).Inc()
}

// RecordTransitionRejected counts a transition the machine refused.
func RecordTransitionRejected() {
	DefaultMetrics.TransitionsRejected.Inc()
}

// RecordSweepRun records one sweep run.
func RecordSweepRun(status string, durationSeconds float64) {
	DefaultMetrics.SweepRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SweepDuration.Observe(durationSeconds)
}

// RecordLiquidationProcessed counts one aggregated liquidation event.
func RecordLiquidationProcessed() {
	DefaultMetrics.LiquidationsProcessed.Inc()
}

// RecordPeriodCreated counts a newly created period record.
func RecordPeriodCreated(period string) {
	DefaultMetrics.PeriodRecordsCreated.WithLabelValues(period).Inc()
}

// RecordPeriodMerged counts a merge into an existing period record.
func RecordPeriodMerged(period string) {
	DefaultMetrics.PeriodRecordsMerged.WithLabelValues(period).Inc()
}

// RecordPeriodFailure counts a failed per-period update.
func RecordPeriodFailure(period string) {
	DefaultMetrics.PeriodUpdateFailures.WithLabelValues(period).Inc()
}

// RecordMergeConflict counts a compare-and-swap conflict.
func RecordMergeConflict() {
	DefaultMetrics.MergeConflicts.Inc()
}

// RecordOrderEvent counts one received order event.
func RecordOrderEvent() {
	DefaultMetrics.OrderEventsReceived.Inc()
}

// RecordFeedReconnect counts one feed reconnect attempt.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordStoreOp records store operation metrics.
func RecordStoreOp(store, operation string, seconds float64, err error) {
	DefaultMetrics.StoreOpDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreOpErrors.WithLabelValues(store, operation).Inc()
	}
}
