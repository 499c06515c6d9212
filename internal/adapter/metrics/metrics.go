package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adru_export"

// IngestMetrics holds the Prometheus metrics of the ingest and enrich workflows.
type IngestMetrics struct {
	FilesTotal       *prometheus.CounterVec
	MessagesInserted prometheus.Counter
	MalformedLines   prometheus.Counter
	DriftAttributes  *prometheus.CounterVec
	IngestDuration   prometheus.Histogram
	EnrichRows       *prometheus.CounterVec
	WALActive        prometheus.Gauge
}

// NewIngestMetrics registers the metrics on reg. A nil reg uses a private
// registry, which keeps repeated construction in tests from panicking.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &IngestMetrics{
		FilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of source files handled, by outcome.",
		}, []string{"status"}), // status: ingested, skipped, drift, failed
		MessagesInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_inserted_total",
			Help:      "Total number of messages written to the store.",
		}),
		MalformedLines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parse",
			Name:      "malformed_lines_total",
			Help:      "Total number of message lines skipped because their id was not an integer.",
		}),
		DriftAttributes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "drift_attributes_total",
			Help:      "Total number of attributes found outside the fixed schema, by namespace.",
		}, []string{"namespace"}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "file_duration_seconds",
			Help:      "Time spent ingesting one source file.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		EnrichRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "rows_total",
			Help:      "Total number of CSV rows enriched, by result.",
		}, []string{"result"}), // result: matched, unmatched, invalid_key
		WALActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "wal_active_gauge",
			Help:      "Indicates if reports are currently journaled to the WAL (1 for active, 0 for inactive).",
		}),
	}
}
