package observability

import (
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Export outcome labels.
const (
	ExportSucceeded    = "success"
	ExportFailed       = "export_failed"
	ExportUpdateFailed = "update_failed"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
	recordsExported prometheus.Counter
	confirmsTotal   *prometheus.CounterVec
	staleResults    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		exportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_exports_total",
				Help: "Spreadsheet exports by outcome.",
			},
			[]string{"outcome"},
		),
		recordsExported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_factures_exported_total",
				Help: "Factures written to export files.",
			},
		),
		confirmsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_import_confirmations_total",
				Help: "Confirm-import attempts on pending exports.",
			},
			[]string{"status"},
		),
		staleResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_stale_results_total",
				Help: "Fetch results discarded because a newer request was issued.",
			},
			[]string{"target"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrExport counts one export attempt by outcome; records is added to the
// exported total when the file was produced.
func (m *Metrics) IncrExport(outcome string, records int) {
	m.exportsTotal.WithLabelValues(outcome).Inc()
	if outcome != ExportFailed {
		m.recordsExported.Add(float64(records))
	}
}

// IncrConfirm counts a confirm-import attempt ("success" or "error").
func (m *Metrics) IncrConfirm(status string) {
	m.confirmsTotal.WithLabelValues(status).Inc()
}

// IncrStaleResult counts a discarded out-of-order completion.
func (m *Metrics) IncrStaleResult(target string) {
	m.staleResults.WithLabelValues(target).Inc()
}

// GetExportSnapshot returns the export counters for GET /v1/metrics/exports.
func (m *Metrics) GetExportSnapshot() *domain.ExportMetrics {
	// Prometheus counters expose cumulative values.
	rec := &dto.Metric{}
	recorded := float64(0)
	if err := m.recordsExported.Write(rec); err == nil && rec.Counter != nil {
		recorded = rec.Counter.GetValue()
	}

	return &domain.ExportMetrics{
		ExportsSucceeded: getCounterValue(m.exportsTotal, ExportSucceeded),
		ExportsFailed:    getCounterValue(m.exportsTotal, ExportFailed),
		UpdatesFailed:    getCounterValue(m.exportsTotal, ExportUpdateFailed),
		RecordsExported:  recorded,
		Confirmations:    getCounterValue(m.confirmsTotal, "success"),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
