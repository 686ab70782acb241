package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the ingestion pipeline.
type PipelineMetrics struct {
	ReadingsIngested   *prometheus.CounterVec
	ReadingsRejected   *prometheus.CounterVec
	BatchesTotal       *prometheus.CounterVec
	BatchSize          prometheus.Histogram
	IngestionDuration  *prometheus.HistogramVec
	PersistenceErrors  prometheus.Counter
	ReadingsPersisted  prometheus.Counter
	ConsumerMessages   *prometheus.CounterVec
	ConsumerErrors     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
}

// NewPipelineMetrics creates and registers ingestion pipeline metrics.
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	m := &PipelineMetrics{
		ReadingsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "readings_total",
				Help:      "Total number of readings accepted by the pipeline",
			},
			[]string{"mode"}, // mode: single, batch, batch_parallel
		),
		ReadingsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "readings_rejected_total",
				Help:      "Total number of readings rejected during validation",
			},
			[]string{"mode"},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "batches_total",
				Help:      "Total number of batch ingestion calls",
			},
			[]string{"mode", "status"}, // status: success, error
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "batch_size",
				Help:      "Number of readings submitted per batch",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		IngestionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "duration_seconds",
				Help:      "Duration of ingestion calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		PersistenceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "persistence_errors_total",
				Help:      "Total number of failed storage writes",
			},
		),
		ReadingsPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingestion",
				Name:      "readings_persisted_total",
				Help:      "Total number of readings written to storage",
			},
		),
		ConsumerMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "messages_total",
				Help:      "Total number of telemetry envelopes consumed",
			},
			[]string{"queue", "status"}, // status: success, error
		),
		ConsumerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "errors_total",
				Help:      "Total number of consumer errors",
			},
			[]string{"queue", "error_type"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "processing_duration_seconds",
				Help:      "Duration of envelope processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
	}

	MustRegister(
		m.ReadingsIngested,
		m.ReadingsRejected,
		m.BatchesTotal,
		m.BatchSize,
		m.IngestionDuration,
		m.PersistenceErrors,
		m.ReadingsPersisted,
		m.ConsumerMessages,
		m.ConsumerErrors,
		m.ProcessingDuration,
	)

	return m
}
