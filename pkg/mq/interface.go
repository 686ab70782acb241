package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the producing half of the client, used by the telemetry
// generator.
type Publisher interface {
	// Publish pushes a payload onto the queue and waits for confirmation.
	Publish(ctx context.Context, body []byte) error

	// Close shuts down the channel and connection.
	Close() error
}

// Consumer is the consuming half of the client, used by the ingestion server.
type Consumer interface {
	// Consume returns a delivery channel. Each delivery must be Acked once
	// handled or Nacked to be redelivered.
	Consume() (<-chan amqp.Delivery, error)

	// Close shuts down the channel and connection.
	Close() error
}

var (
	_ Publisher = (*Client)(nil)
	_ Consumer  = (*Client)(nil)
)
