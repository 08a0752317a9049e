// Package metrics provides Prometheus metrics for the index.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the tree.
type Metrics struct {
	InsertsTotal    prometheus.Counter
	SearchesTotal   prometheus.Counter
	DeletesTotal    prometheus.Counter
	RangeScansTotal prometheus.Counter
	SplitsTotal     prometheus.Counter
	RetriesTotal    prometheus.Counter

	OperationDuration *prometheus.HistogramVec

	TreeHeight prometheus.Gauge
	NodeCount  prometheus.Gauge

	ServerStartTime time.Time
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.InsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_inserts_total",
			Help: "Total number of Insert calls.",
		},
	)

	m.SearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_searches_total",
			Help: "Total number of Search calls.",
		},
	)

	m.DeletesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_deletes_total",
			Help: "Total number of Delete calls.",
		},
	)

	m.RangeScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_range_scans_total",
			Help: "Total number of SearchRange calls.",
		},
	)

	m.SplitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_splits_total",
			Help: "Total number of FAIR node splits performed.",
		},
	)

	m.RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fastfair_retries_total",
			Help: "Total number of top-down descents restarted because the target node had been retired by a rebalance merge.",
		},
	)

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fastfair_operation_duration_seconds",
			Help:    "Duration of tree operations in seconds.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation"},
	)

	m.TreeHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fastfair_tree_height",
			Help: "Current tree height (advisory, per spec).",
		},
	)

	m.NodeCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fastfair_node_count",
			Help: "Estimated number of allocated nodes.",
		},
	)

	return m
}

// RecordOperation records the latency of a single tree operation.
func (m *Metrics) RecordOperation(operation string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
