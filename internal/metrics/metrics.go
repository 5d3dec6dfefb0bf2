// Package metrics exposes Prometheus collectors for the auth service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcomes recorded by the handlers.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid_input"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeError        = "error"
)

// Metrics bundles the service's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	AuthAttempts       *prometheus.CounterVec
	TokenVerifications *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Register and login attempts by outcome.",
			},
			[]string{"action", "outcome"},
		),
		TokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_verifications_total",
				Help: "Session token checks by result.",
			},
			[]string{"result"}, // valid|invalid|missing
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.AuthAttempts,
		m.TokenVerifications,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAuth counts one register or login attempt.
func (m *Metrics) ObserveAuth(action, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(action, outcome).Inc()
}

// ObserveToken counts one token check.
func (m *Metrics) ObserveToken(result string) {
	if m == nil {
		return
	}
	m.TokenVerifications.WithLabelValues(result).Inc()
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
