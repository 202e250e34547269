// Package metrics exposes server counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace префикс всех метрик сервера
const Namespace = "credisync"

// Outcome labels
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeDeleted  = "deleted"
	OutcomeReplayed = "replayed"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the server collectors on a dedicated registry.
//
// Safe for concurrent use.
type Metrics struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "mutations_total",
				Help:      "Record mutations received, by entity type, operation and outcome.",
			},
			[]string{"entity", "operation", "outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "conflicts_total",
				Help:      "Mutations answered with 409 because the record diverged.",
			},
			[]string{"entity", "operation"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Time spent applying a record mutation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	m.registry.MustRegister(
		m.mutations,
		m.conflicts,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveMutation records one applied (or refused) mutation.
func (m *Metrics) ObserveMutation(entity, operation, outcome string, elapsed time.Duration) {
	m.mutations.WithLabelValues(entity, operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if outcome == OutcomeConflict {
		m.conflicts.WithLabelValues(entity, operation).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
