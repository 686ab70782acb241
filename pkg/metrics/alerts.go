package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics contains Prometheus metrics for alert generation and lifecycle.
type AlertMetrics struct {
	AlertsCreated      *prometheus.CounterVec
	AlertsDeactivated  prometheus.Counter
	FieldsProcessed    prometheus.Counter
	EvaluationDuration prometheus.Histogram
	EvaluationErrors   prometheus.Counter
	SweepDuration      prometheus.Histogram
}

// NewAlertMetrics creates and registers alert engine metrics.
func NewAlertMetrics(namespace string) *AlertMetrics {
	m := &AlertMetrics{
		AlertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "created_total",
				Help:      "Total number of alerts created",
			},
			[]string{"status"}, // status: drought_alert, pest_risk
		),
		AlertsDeactivated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "deactivated_total",
				Help:      "Total number of alerts deactivated by the daily sweep",
			},
		),
		FieldsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "fields_processed_total",
				Help:      "Total number of field groups evaluated",
			},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of alert generation runs",
				Buckets:   prometheus.DefBuckets,
			},
		),
		EvaluationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "evaluation_errors_total",
				Help:      "Total number of per-field evaluation errors",
			},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of deactivation sweeps",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	MustRegister(
		m.AlertsCreated,
		m.AlertsDeactivated,
		m.FieldsProcessed,
		m.EvaluationDuration,
		m.EvaluationErrors,
		m.SweepDuration,
	)

	return m
}
