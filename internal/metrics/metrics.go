// Package metrics exposes Prometheus instruments for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleurease"

// Token purposes and outcomes used as label values.
const (
	PurposeVerification = "verification"
	PurposeReset        = "reset"

	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds the custom registry and its instruments. A nil *Metrics
// accepts every call and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requestLatency   *prometheus.HistogramVec
	tokensIssued     *prometheus.CounterVec
	tokensConsumed   *prometheus.CounterVec
	rollbacks        *prometheus.CounterVec
	snapshotLoads    *prometheus.CounterVec
	orphansProcessed *prometheus.CounterVec
	reportsRendered  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Emailed tokens issued by purpose.",
		}, []string{"purpose"}),
		tokensConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_consumed_total",
			Help:      "Token redemption attempts by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_rollbacks_total",
			Help:      "Registrations undone after a downstream failure, by outcome.",
		}, []string{"outcome"}),
		snapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_snapshot_loads_total",
			Help:      "Dashboard snapshot loads by outcome.",
		}, []string{"outcome"}),
		orphansProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_cleanups_total",
			Help:      "Orphaned accounts handled by the cleanup job, by outcome.",
		}, []string{"source", "outcome"}),
		reportsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_rendered_total",
			Help:      "Dashboard reports rendered by format.",
		}, []string{"format"}),
	}

	registry.MustRegister(
		m.requestLatency,
		m.tokensIssued,
		m.tokensConsumed,
		m.rollbacks,
		m.snapshotLoads,
		m.orphansProcessed,
		m.reportsRendered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) TokenIssued(purpose string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) TokenConsumed(purpose, outcome string) {
	if m == nil {
		return
	}
	m.tokensConsumed.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) RegistrationRollback(outcome string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SnapshotLoad(outcome string) {
	if m == nil {
		return
	}
	m.snapshotLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OrphanProcessed(source, outcome string) {
	if m == nil {
		return
	}
	m.orphansProcessed.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ReportRendered(format string) {
	if m == nil {
		return
	}
	m.reportsRendered.WithLabelValues(format).Inc()
}
