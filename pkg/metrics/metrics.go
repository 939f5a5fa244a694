// Package metrics exposes SubRelay's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subrelay"

// Subscription outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeBackend    = "backend_error"
	OutcomeProcessing = "processing_error"
	OutcomeError      = "error"
)

// Metrics tracks SubRelay metrics on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	subscriptionRequests *prometheus.CounterVec
	backendDuration      *prometheus.HistogramVec
	outboundsRewritten   prometheus.Counter
	adminRequests        *prometheus.CounterVec
	sessionsPruned       prometheus.Counter
}

// NewMetrics creates a new metrics instance. If registry is nil a fresh one
// is created.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		subscriptionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_requests_total",
				Help:      "Subscription requests by outcome",
			},
			[]string{"outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of backend conversion requests",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"code"},
		),
		outboundsRewritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbounds_rewritten_total",
				Help:      "Outbounds that had a detour applied",
			},
		),
		adminRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_requests_total",
				Help:      "Admin API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		sessionsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_pruned_total",
				Help:      "Expired admin sessions removed",
			},
		),
	}

	registry.MustRegister(
		m.subscriptionRequests,
		m.backendDuration,
		m.outboundsRewritten,
		m.adminRequests,
		m.sessionsPruned,
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSubscription records the outcome of one /sub request.
func (m *Metrics) RecordSubscription(outcome string) {
	if m == nil {
		return
	}
	m.subscriptionRequests.WithLabelValues(outcome).Inc()
}

// RecordBackendRequest records one backend call. code is 0 when no
// response was received.
func (m *Metrics) RecordBackendRequest(code int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "none"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	m.backendDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordRewrite records outbounds that received a detour.
func (m *Metrics) RecordRewrite(outbounds int) {
	if m == nil || outbounds <= 0 {
		return
	}
	m.outboundsRewritten.Add(float64(outbounds))
}

// RecordAdminRequest records one admin API response.
func (m *Metrics) RecordAdminRequest(method string, code int) {
	if m == nil {
		return
	}
	m.adminRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// RecordSessionsPruned records removed sessions.
func (m *Metrics) RecordSessionsPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPruned.Add(float64(n))
}

// Handler returns the /metrics handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
