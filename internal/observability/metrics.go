package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	escalationRuns     *prometheus.CounterVec
	escalatedIssues    prometheus.Counter
	evidenceUploads    *prometheus.CounterVec
	evidenceCompressed *prometheus.CounterVec
	evidenceRollbacks  prometheus.Counter
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "field_audit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Domain errors returned to callers, by code.",
		}, []string{"route", "method", "code"}),
		escalationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "escalation",
			Name:      "runs_total",
			Help:      "Escalation runs by result.",
		}, []string{"result"}),
		escalatedIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "escalation",
			Name:      "issues_total",
			Help:      "Issues flipped to prioritized by escalation.",
		}),
		evidenceUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "evidence",
			Name:      "uploads_total",
			Help:      "Evidence blob saves by slot and result.",
		}, []string{"slot", "result"}),
		evidenceCompressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "evidence",
			Name:      "compressions_total",
			Help:      "Evidence recompressions by result.",
		}, []string{"result"}),
		evidenceRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field_audit",
			Subsystem: "evidence",
			Name:      "rollback_blobs_total",
			Help:      "Blobs deleted while rolling back failed mutations.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.errors,
		m.escalationRuns, m.escalatedIssues,
		m.evidenceUploads, m.evidenceCompressed, m.evidenceRollbacks,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordEscalation counts one run and the issues it escalated.
func (m *Metrics) RecordEscalation(updated int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.escalationRuns.WithLabelValues("error").Inc()
		return
	}
	m.escalationRuns.WithLabelValues("ok").Inc()
	m.escalatedIssues.Add(float64(updated))
}

// RecordUpload counts a blob save attempt.
func (m *Metrics) RecordUpload(slot string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.evidenceUploads.WithLabelValues(slot, result).Inc()
}

// RecordCompression counts a recompression attempt; result is ok, skipped or error.
func (m *Metrics) RecordCompression(result string) {
	if m == nil {
		return
	}
	m.evidenceCompressed.WithLabelValues(result).Inc()
}

// RecordRollback counts blobs deleted during rollback.
func (m *Metrics) RecordRollback(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evidenceRollbacks.Add(float64(n))
}
