// Package mq provides a RabbitMQ client with automatic reconnection used to
// move telemetry envelopes between the field generators and the pipeline.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"agrosolutions.dev/agro-pipeline/pkg/metrics"
)

const (
	// Delay before redialing after a connection failure.
	redialDelay = 5 * time.Second

	// Delay before reopening a channel after a channel exception.
	reopenDelay = 2 * time.Second

	// Initial backoff for Publish retries while disconnected.
	publishBackoff = 100 * time.Millisecond

	// Upper bound for the publish backoff.
	publishBackoffMax = 10 * time.Second

	// Publish attempts before giving up.
	publishAttempts = 5
)

var (
	// ErrNotConnected is returned when an operation is attempted before the
	// client has an open channel.
	ErrNotConnected = errors.New("not connected to the broker")

	// ErrClosed is returned when the client has been shut down.
	ErrClosed = errors.New("client is closed")

	errPublishExhausted = errors.New("publish retry attempts exhausted")
)

// Client manages a RabbitMQ connection to a single queue. It redials the
// broker and reopens channels in the background; Publish waits for broker
// confirmation before returning.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	conn            *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queue           string
	ready           bool
	metrics         *metrics.MQMetrics // optional
}

// NewClient creates a client for the given queue and starts connecting to the
// broker in the background.
func NewClient(queue, url string, logger *slog.Logger) *Client {
	c := &Client{
		logger: logger,
		queue:  queue,
		done:   make(chan struct{}),
	}
	go c.redialLoop(url)
	return c
}

// SetMetrics sets the metrics collector for this client. Call it before the
// client starts moving messages.
func (c *Client) SetMetrics(m *metrics.MQMetrics) {
	c.metrics = m
}

// redialLoop re-establishes the connection whenever it drops.
func (c *Client) redialLoop(url string) {
	for {
		c.setReady(false)
		c.logger.Info("connecting to broker", "queue", c.queue)

		if c.metrics != nil {
			c.metrics.ReconnectAttempts.Inc()
		}

		conn, err := amqp.Dial(url)
		if err != nil {
			if c.metrics != nil {
				c.metrics.ConnectionStatus.Set(0)
			}
			c.logger.Error("broker dial failed, retrying", "error", err)

			select {
			case <-c.done:
				return
			case <-time.After(redialDelay):
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.notifyConnClose = make(chan *amqp.Error, 1)
		conn.NotifyClose(c.notifyConnClose)
		c.mu.Unlock()

		if c.metrics != nil {
			c.metrics.ConnectionStatus.Set(1)
		}
		c.logger.Info("connected to broker")

		if stopped := c.channelLoop(conn); stopped {
			return
		}
	}
}

// channelLoop keeps a channel open on the given connection until the
// connection drops or the client is closed.
func (c *Client) channelLoop(conn *amqp.Connection) bool {
	for {
		c.setReady(false)

		if err := c.openChannel(conn); err != nil {
			c.logger.Error("channel setup failed, retrying", "error", err)

			select {
			case <-c.done:
				return true
			case <-c.notifyConnClose:
				c.logger.Info("connection closed, redialing")
				return false
			case <-time.After(reopenDelay):
			}
			continue
		}

		select {
		case <-c.done:
			return true
		case <-c.notifyConnClose:
			c.logger.Info("connection closed, redialing")
			return false
		case <-c.notifyChanClose:
			c.logger.Info("channel closed, reopening")
		}
	}
}

// openChannel opens a confirm-mode channel and declares the queue.
func (c *Client) openChannel(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		c.queue,
		true,  // durable: telemetry survives broker restarts
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	c.mu.Lock()
	c.channel = ch
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConfirm = make(chan amqp.Confirmation, 1)
	ch.NotifyClose(c.notifyChanClose)
	ch.NotifyPublish(c.notifyConfirm)
	c.ready = true
	c.mu.Unlock()

	c.logger.Info("channel ready", "queue", c.queue)
	return nil
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

func (c *Client) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Publish pushes a JSON payload onto the queue and waits for broker
// confirmation. While disconnected it backs off and retries, giving the
// redial loop time to recover; after publishAttempts failures it gives up.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.PublishDuration.WithLabelValues(c.queue))
		defer timer.ObserveDuration()
	}

	backoff := publishBackoff
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if !c.isReady() {
			if err := c.wait(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if err := c.publishOnce(ctx, body); err != nil {
			c.logger.Warn("publish failed, backing off", "error", err, "attempt", attempt)
			if err := c.wait(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case confirm := <-c.notifyConfirm:
			if confirm.Ack {
				if c.metrics != nil {
					c.metrics.MessagesPublished.WithLabelValues(c.queue).Inc()
				}
				c.logger.Debug("publish confirmed", "delivery_tag", confirm.DeliveryTag)
				return nil
			}
			c.logger.Warn("publish nacked by broker, retrying", "delivery_tag", confirm.DeliveryTag)
			if err := c.wait(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff)
		}
	}

	if c.metrics != nil {
		c.metrics.PublishErrors.WithLabelValues(c.queue).Inc()
	}
	return errPublishExhausted
}

// publishOnce sends without waiting for confirmation.
func (c *Client) publishOnce(ctx context.Context, body []byte) error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ch := c.channel
	c.mu.Unlock()

	return ch.PublishWithContext(
		ctx,
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case <-time.After(d):
		return nil
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > publishBackoffMax {
		d = publishBackoffMax
	}
	return d
}

// Consume returns a delivery channel for the queue. Callers must Ack each
// delivery once handled, or Nack it to have the broker redeliver.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	ch := c.channel
	c.mu.Unlock()

	if err := ch.Qos(1, 0, false); err != nil {
		return nil, err
	}

	return ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
}

// Close shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return ErrClosed
	}

	close(c.done)
	c.ready = false

	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
