// Package metrics exposes Prometheus instrumentation of permission
// resolution, guard decisions, admin mutations and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ResolutionsTotal    *prometheus.CounterVec
	GuardDecisionsTotal *prometheus.CounterVec
	AdminMutationsTotal *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admindash_resolutions_total",
				Help: "Total number of user access resolutions by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admindash_guard_decisions_total",
				Help: "Total number of route guard decisions",
			},
			[]string{"guard", "decision"},
		),
		AdminMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admindash_admin_mutations_total",
				Help: "Total number of admin mutations by operation and result",
			},
			[]string{"op", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admindash_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admindash_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.ResolutionsTotal,
		m.GuardDecisionsTotal,
		m.AdminMutationsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveResolution counts one resolution outcome
func (m *Metrics) ObserveResolution(path, outcome string) {
	m.ResolutionsTotal.WithLabelValues(path, outcome).Inc()
}

// ObserveGuardDecision counts one route guard decision
func (m *Metrics) ObserveGuardDecision(guard, decision string) {
	m.GuardDecisionsTotal.WithLabelValues(guard, decision).Inc()
}

// ObserveMutation counts one admin mutation. A nil err counts as success.
func (m *Metrics) ObserveMutation(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.AdminMutationsTotal.WithLabelValues(op, result).Inc()
}

// RegisterActiveSessions exposes the number of live session stores
func (m *Metrics) RegisterActiveSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "admindash_active_sessions",
			Help: "Number of live per-session auth state stores",
		},
		func() float64 { return float64(count()) },
	))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
