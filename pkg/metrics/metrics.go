// Package metrics exposes Prometheus collectors for the scraping engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "statscope"

type Metrics struct {
	RetrievalAttempts *prometheus.CounterVec
	PlatformResults   *prometheus.CounterVec
	PlatformDuration  *prometheus.HistogramVec
	BatchRuns         *prometheus.CounterVec
	BatchEntities     *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
}

// New creates and registers all collectors on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RetrievalAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "retrieval",
			Name:      "attempts_total",
			Help:      "Candidate route attempts by route name and outcome.",
		}, []string{"route", "outcome"}),
		PlatformResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "orchestrator",
			Name:      "platform_results_total",
			Help:      "Platform scrape results by platform and provenance.",
		}, []string{"platform", "provenance"}),
		PlatformDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "orchestrator",
			Name:      "platform_duration_seconds",
			Help:      "Wall time of one platform task.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 25, 30},
		}, []string{"platform"}),
		BatchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Batch runs by trigger.",
		}, []string{"trigger"}),
		BatchEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "batch",
			Name:      "entities_total",
			Help:      "Batch entity outcomes.",
		}, []string{"outcome"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "batch",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one batch run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) Attempt(route, outcome string) {
	if m == nil {
		return
	}
	m.RetrievalAttempts.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) PlatformResult(platform, provenance string, took time.Duration) {
	if m == nil {
		return
	}
	m.PlatformResults.WithLabelValues(platform, provenance).Inc()
	m.PlatformDuration.WithLabelValues(platform).Observe(took.Seconds())
}

func (m *Metrics) BatchRun(trigger string, took time.Duration) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(trigger).Inc()
	m.BatchDuration.Observe(took.Seconds())
}

func (m *Metrics) BatchEntity(outcome string) {
	if m == nil {
		return
	}
	m.BatchEntities.WithLabelValues(outcome).Inc()
}
