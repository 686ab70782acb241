// Package server composes the long-running ingestion service: the queue
// consumer feeding the pipeline, the alert scheduler, the metrics endpoint
// and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrosolutions.dev/agro-pipeline/internal/ingest"
	"agrosolutions.dev/agro-pipeline/pkg/metrics"
	"agrosolutions.dev/agro-pipeline/pkg/mq"
)

// Batches at or above this size take the parallel ingestion path.
const parallelBatchThreshold = 32

// Consumer consumes telemetry envelopes from RabbitMQ and feeds them into
// the ingestion pipeline.
type Consumer struct {
	logger   *slog.Logger
	pipeline *ingest.Pipeline
	mqClient mq.Consumer
	queue    string
	metrics  *metrics.PipelineMetrics // optional
	done     chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	Pipeline *ingest.Pipeline
	MQClient mq.Consumer
	Queue    string
	Metrics  *metrics.PipelineMetrics
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if cfg.Queue == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	return &Consumer{
		logger:   cfg.Logger,
		pipeline: cfg.Pipeline,
		mqClient: cfg.MQClient,
		queue:    cfg.Queue,
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming envelopes from the queue.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer", "queue", c.queue)

	// Give the MQ client time to finish its first connect.
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started, waiting for envelopes")
	go c.processDeliveries(ctx, deliveries)

	return nil
}

// processDeliveries drains the delivery channel until shutdown.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping envelope processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery decodes one envelope and routes it through the pipeline.
// Undecodable and invalid envelopes are acked and dropped so poison messages
// do not loop; persistence failures and cancelled batches nack with requeue
// so readings are not lost on a storage outage or a shutdown race.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(c.queue))
		defer timer.ObserveDuration()
	}

	batch, err := decodeEnvelope(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode telemetry envelope", "error", err)
		if c.metrics != nil {
			c.metrics.ConsumerErrors.WithLabelValues(c.queue, "decode").Inc()
		}
		c.ack(delivery)
		return
	}

	requeue := false
	switch {
	case len(batch.Readings) == 1:
		res := c.pipeline.IngestSingle(ctx, batch.Readings[0])
		requeue = !res.Succeeded && res.HasKey(ingest.KeyPersistence)
		if !res.Succeeded && !requeue {
			c.logger.Warn("rejected telemetry envelope", "errors", res.Messages())
		}

	case len(batch.Readings) >= parallelBatchThreshold:
		res := c.pipeline.IngestBatchParallel(ctx, *batch)
		requeue = res.HasKey(ingest.KeyPersistence) || res.HasKey(ingest.KeyCancelled)

	default:
		res := c.pipeline.IngestBatch(ctx, *batch)
		requeue = res.HasKey(ingest.KeyPersistence) || res.HasKey(ingest.KeyCancelled)
	}

	if requeue {
		c.logger.Error("ingestion incomplete, requeueing envelope", "readings", len(batch.Readings))
		if c.metrics != nil {
			c.metrics.ConsumerErrors.WithLabelValues(c.queue, "persistence").Inc()
			c.metrics.ConsumerMessages.WithLabelValues(c.queue, "error").Inc()
		}
		if err := delivery.Nack(false, true); err != nil {
			c.logger.Error("failed to nack envelope", "error", err)
		}
		return
	}

	if c.metrics != nil {
		c.metrics.ConsumerMessages.WithLabelValues(c.queue, "success").Inc()
	}
	c.ack(delivery)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack envelope", "error", err)
	}
}

// decodeEnvelope accepts either a batch envelope or a bare reading object.
func decodeEnvelope(body []byte) (*ingest.BatchInput, error) {
	var batch ingest.BatchInput
	if err := json.Unmarshal(body, &batch); err == nil && len(batch.Readings) > 0 {
		return &batch, nil
	}

	var single ingest.ReadingInput
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("envelope is neither a batch nor a reading: %w", err)
	}
	return &ingest.BatchInput{Readings: []ingest.ReadingInput{single}}, nil
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done
	c.logger.Info("consumer stopped")
	return nil
}
