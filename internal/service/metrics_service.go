package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the prometheus registry and the workflow counters.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	statusTransitions *prometheus.CounterVec
	reviewSubmissions *prometheus.CounterVec
	reconcileRepairs  prometheus.Counter
}

// NewMetricsService builds the registry and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_status_transitions_total",
			Help: "Thesis status transitions by target status.",
		}, []string{"status"}),
		reviewSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thesis_review_submissions_total",
			Help: "Role review submissions by role and outcome.",
		}, []string{"role", "outcome"}),
		reconcileRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_repairs_total",
			Help: "Link repairs applied by the reconciliation pass.",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.statusTransitions,
		m.reviewSubmissions,
		m.reconcileRepairs,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// CountStatusTransition records a thesis entering the given status.
func (m *MetricsService) CountStatusTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

// CountReviewSubmission records a role review by outcome.
func (m *MetricsService) CountReviewSubmission(role, outcome string) {
	m.reviewSubmissions.WithLabelValues(role, outcome).Inc()
}

// CountReconcileRepairs adds repairs from one reconciliation pass.
func (m *MetricsService) CountReconcileRepairs(n int) {
	m.reconcileRepairs.Add(float64(n))
}
