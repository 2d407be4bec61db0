// Package metrics exposes Prometheus collectors for harvest runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the harvest collectors on a dedicated registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registry       *prometheus.Registry
	RunsTotal      *prometheus.CounterVec
	FailuresTotal  *prometheus.CounterVec
	RowsTotal      prometheus.Counter
	PagesTotal     prometheus.Counter
	ArtifactsTotal *prometheus.CounterVec
	RunDuration    prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sosharvest_runs_total",
			Help: "Finished harvest runs by outcome.",
		},
		[]string{"outcome"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sosharvest_failures_total",
			Help: "Failed harvest runs by error code.",
		},
		[]string{"code"},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sosharvest_rows_extracted_total",
			Help: "Result rows pushed to the dataset.",
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sosharvest_pages_processed_total",
			Help: "Result pages extracted.",
		},
	)
	artifacts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sosharvest_artifacts_total",
			Help: "Artifacts written to the key-value store by kind.",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sosharvest_run_duration_seconds",
			Help:    "Wall time of harvest runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	registry.MustRegister(runs, failures, rows, pages, artifacts, duration)

	return &Metrics{
		Registry:       registry,
		RunsTotal:      runs,
		FailuresTotal:  failures,
		RowsTotal:      rows,
		PagesTotal:     pages,
		ArtifactsTotal: artifacts,
		RunDuration:    duration,
	}
}

// IncRun counts a finished run ("succeeded" or "failed").
func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// IncFailure counts a failure by error code.
func (m *Metrics) IncFailure(code string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(code).Inc()
}

// AddRows adds n extracted rows.
func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsTotal.Add(float64(n))
}

// IncPage counts one extracted result page.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncArtifact counts a stored artifact of the given kind.
func (m *Metrics) IncArtifact(kind string) {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(kind).Inc()
}

// ObserveRun records a run duration.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
