package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/trailguard/models"
)

const namespace = "trailguard"

// Ingest outcomes
const (
	OutcomeRecorded = "recorded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

// Metrics records domain counters
type Metrics interface {
	RecordIngest(outcome string)
	RecordIncident(severity models.Severity)
	RecordQuery(status string, duration time.Duration)
}

// PrometheusMetrics implements Metrics on a private registry
type PrometheusMetrics struct {
	registry         *prometheus.Registry
	ingestEvents     *prometheus.CounterVec
	incidentsWritten *prometheus.CounterVec
	queries          *prometheus.CounterVec
	queryDuration    prometheus.Histogram
}

// NewPrometheusMetrics registers the collectors plus the Go and process
// collectors on a fresh registry
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		ingestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Audit events handled by the ingest path, by outcome.",
		}, []string{"outcome"}),
		incidentsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_recorded_total",
			Help:      "Incidents written to the store, by severity.",
		}, []string{"severity"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_queries_total",
			Help:      "Incident queries, by result.",
		}, []string{"status"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "incident_query_duration_seconds",
			Help:      "Latency of incident queries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestEvents,
		m.incidentsWritten,
		m.queries,
		m.queryDuration,
	)
	return m
}

func (m *PrometheusMetrics) RecordIngest(outcome string) {
	m.ingestEvents.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordIncident(severity models.Severity) {
	m.incidentsWritten.WithLabelValues(string(severity)).Inc()
}

func (m *PrometheusMetrics) RecordQuery(status string, duration time.Duration) {
	m.queries.WithLabelValues(status).Inc()
	m.queryDuration.Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordIngest(string) {}
func (NopMetrics) RecordIncident(models.Severity) {}
func (NopMetrics) RecordQuery(string, time.Duration) {}
