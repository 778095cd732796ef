// Package metrics provides Prometheus instrumentation for haetable.
//
// Metrics exposed:
//   - haetable_airtable_request_seconds: Histogram of Airtable API calls by operation and status
//   - haetable_deliveries_total: Counter of webhook deliveries by status
//   - haetable_tables_created_total: Counter of tables created in the base
//   - haetable_rows_written_total: Counter of rows written by table
//   - haetable_samples_skipped_total: Counter of samples skipped by reason
//   - haetable_batches_failed_total: Counter of rejected write batches by table
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/meltforce/haetable/internal/ingest/hae"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	reg *prometheus.Registry

	AirtableRequestSeconds *prometheus.HistogramVec
	DeliveriesTotal        *prometheus.CounterVec
	TablesCreatedTotal     prometheus.Counter
	RowsWrittenTotal       *prometheus.CounterVec
	SamplesSkippedTotal    *prometheus.CounterVec
	BatchesFailedTotal     *prometheus.CounterVec
}

// New creates a registry with process and Go collectors and registers all
// service metrics on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		AirtableRequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "haetable_airtable_request_seconds",
			Help:    "Duration of Airtable API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),

		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "haetable_deliveries_total",
			Help: "Webhook deliveries by outcome",
		}, []string{"status"}),

		TablesCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "haetable_tables_created_total",
			Help: "Tables created in the Airtable base",
		}),

		RowsWrittenTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "haetable_rows_written_total",
			Help: "Rows written to Airtable",
		}, []string{"table"}),

		SamplesSkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "haetable_samples_skipped_total",
			Help: "Samples that produced no row",
		}, []string{"reason"}),

		BatchesFailedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "haetable_batches_failed_total",
			Help: "Record batches rejected by Airtable",
		}, []string{"table"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveRequest records one Airtable call. Status 0 means the request never
// got a response.
func (m *Metrics) ObserveRequest(op string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.AirtableRequestSeconds.WithLabelValues(op, label).Observe(elapsed.Seconds())
}

// RecordDelivery counts a processed webhook delivery.
func (m *Metrics) RecordDelivery(status string) {
	m.DeliveriesTotal.WithLabelValues(status).Inc()
}

// TableCreated implements hae.Recorder.
func (m *Metrics) TableCreated(string) {
	m.TablesCreatedTotal.Inc()
}

// SampleSkipped implements hae.Recorder.
func (m *Metrics) SampleSkipped(_ string, reason hae.SkipReason) {
	m.SamplesSkippedTotal.WithLabelValues(reason.String()).Inc()
}

// RowsWritten implements hae.Recorder.
func (m *Metrics) RowsWritten(table string, n int) {
	m.RowsWrittenTotal.WithLabelValues(table).Add(float64(n))
}

// BatchFailed implements hae.Recorder.
func (m *Metrics) BatchFailed(table string) {
	m.BatchesFailedTotal.WithLabelValues(table).Inc()
}
