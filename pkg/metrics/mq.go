package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQMetrics contains Prometheus metrics for message queue operations.
type MQMetrics struct {
	MessagesPublished *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec
	ConnectionStatus  prometheus.Gauge
	ReconnectAttempts prometheus.Counter
}

// NewMQMetrics creates and registers message queue metrics.
func NewMQMetrics(namespace string) *MQMetrics {
	m := &MQMetrics{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "messages_published_total",
				Help:      "Total number of messages published",
			},
			[]string{"queue"},
		),
		PublishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_errors_total",
				Help:      "Total number of publish errors",
			},
			[]string{"queue"},
		),
		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_duration_seconds",
				Help:      "Duration of publish operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		ConnectionStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "connection_status",
				Help:      "Connection status (1 = connected, 0 = disconnected)",
			},
		),
		ReconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "reconnect_attempts_total",
				Help:      "Total number of reconnection attempts",
			},
		),
	}

	MustRegister(
		m.MessagesPublished,
		m.PublishErrors,
		m.PublishDuration,
		m.ConnectionStatus,
		m.ReconnectAttempts,
	)

	return m
}
