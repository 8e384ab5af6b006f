// Package metrics defines the Prometheus metrics exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Audit metrics
	AuditRecordedTotal    *prometheus.CounterVec
	AuditFailuresTotal    *prometheus.CounterVec
	AuditDroppedTotal     prometheus.Counter
	AuditQueueDepth       prometheus.Gauge
	AuditExportRowsTotal  prometheus.Counter
	AuditRetentionDeleted prometheus.Counter
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licitacoes_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "licitacoes_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuditRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licitacoes_audit_recorded_total",
				Help: "Audit entries appended, by table and operation",
			},
			[]string{"table", "operation"},
		),
		AuditFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licitacoes_audit_failures_total",
				Help: "Audit entries that could not be appended",
			},
			[]string{"table", "operation"},
		),
		AuditDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "licitacoes_audit_dropped_total",
				Help: "Audit events dropped because the write queue was full",
			},
		),
		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "licitacoes_audit_queue_depth",
				Help: "Audit events waiting in the write queue",
			},
		),
		AuditExportRowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "licitacoes_audit_export_rows_total",
				Help: "Rows written by audit exports",
			},
		),
		AuditRetentionDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "licitacoes_audit_retention_deleted_total",
				Help: "Audit entries purged by the retention sweep",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuditRecordedTotal,
		m.AuditFailuresTotal,
		m.AuditDroppedTotal,
		m.AuditQueueDepth,
		m.AuditExportRowsTotal,
		m.AuditRetentionDeleted,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
