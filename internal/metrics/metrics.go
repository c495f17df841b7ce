// Package metrics exposes Prometheus collectors for the agent services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the per-process collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	dedupHits       *prometheus.CounterVec
	jobTransitions  *prometheus.CounterVec
}

// New creates a metrics set for the named service.
func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intexuraos",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intexuraos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intexuraos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"method", "path"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intexuraos",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of third-party provider calls by outcome code.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"provider", "code"}),
		dedupHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intexuraos",
			Subsystem: "dedup",
			Name:      "hits_total",
			Help:      "Duplicate submissions detected, by endpoint policy.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"endpoint", "policy"}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intexuraos",
			Subsystem: "jobs",
			Name:      "status_transitions_total",
			Help:      "Record status transitions.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"entity", "status"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.providerCalls,
		m.dedupHits,
		m.jobTransitions,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderCall records a third-party call outcome.
func (m *Metrics) RecordProviderCall(provider, code string) {
	m.providerCalls.WithLabelValues(provider, code).Inc()
}

// RecordDedupHit records a duplicate submission.
func (m *Metrics) RecordDedupHit(endpoint, policy string) {
	m.dedupHits.WithLabelValues(endpoint, policy).Inc()
}

// RecordStatusTransition records a record moving to a new status.
func (m *Metrics) RecordStatusTransition(entity, status string) {
	m.jobTransitions.WithLabelValues(entity, status).Inc()
}
