package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthzDecisionsTotal *prometheus.CounterVec

	MemoryAPIRequestsTotal   *prometheus.CounterVec
	MemoryAPIRequestDuration *prometheus.HistogramVec

	AuditEntriesTotal       *prometheus.CounterVec
	InvitationsExpiredTotal prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorai_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memorai_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorai_authz_decisions_total",
				Help: "Authorization decisions by outcome and required role",
			},
			[]string{"outcome", "required"},
		),

		MemoryAPIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorai_memory_api_requests_total",
				Help: "Requests made to the memory service",
			},
			[]string{"method", "result"},
		),
		MemoryAPIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memorai_memory_api_request_duration_seconds",
				Help:    "Memory service request duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorai_audit_entries_total",
				Help: "Audit entries written by action",
			},
			[]string{"action"},
		),
		InvitationsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "memorai_invitations_expired_total",
				Help: "Invitations transitioned to expired",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.MemoryAPIRequestsTotal,
		m.MemoryAPIRequestDuration,
		m.AuditEntriesTotal,
		m.InvitationsExpiredTotal,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAuthz(outcome, required string) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(outcome, required).Inc()
}

func (m *Metrics) ObserveMemoryAPI(method, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.MemoryAPIRequestsTotal.WithLabelValues(method, result).Inc()
	m.MemoryAPIRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveAudit(action string) {
	if m == nil {
		return
	}
	m.AuditEntriesTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveInvitationsExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.InvitationsExpiredTotal.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
