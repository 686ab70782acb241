package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agrosolutions.dev/agro-pipeline/internal/ingest"
	"agrosolutions.dev/agro-pipeline/pkg/mq"
)

// Publisher emits synthetic telemetry envelopes for a fleet of fields on a
// fixed interval.
type Publisher struct {
	logger     *slog.Logger
	mqClient   mq.Publisher
	fields     []*Field
	generators []*FieldTelemetry
	interval   time.Duration
}

// PublisherConfig holds the configuration for the Publisher.
type PublisherConfig struct {
	Logger   *slog.Logger
	MQClient mq.Publisher
	// Fields is the fleet to generate telemetry for.
	Fields []*Field
	// Interval is the time between envelopes.
	Interval time.Duration
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("publisher config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}
	if len(cfg.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}

	generators := make([]*FieldTelemetry, len(cfg.Fields))
	for i, field := range cfg.Fields {
		generators[i] = NewFieldTelemetry(field.FieldID)
	}

	return &Publisher{
		logger:     cfg.Logger,
		mqClient:   cfg.MQClient,
		fields:     cfg.Fields,
		generators: generators,
		interval:   cfg.Interval,
	}, nil
}

// Run publishes one envelope per interval until the context is canceled.
// Each envelope bundles one reading per field, so the consumer exercises the
// batch ingestion path.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("telemetry publisher started",
		"fields", len(p.fields),
		"interval", p.interval,
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telemetry publisher stopped")
			return nil
		case now := <-ticker.C:
			if err := p.publishOnce(ctx, now); err != nil {
				p.logger.Error("failed to publish telemetry envelope", "error", err)
			}
		}
	}
}

// publishOnce builds and publishes one envelope for the current tick.
func (p *Publisher) publishOnce(ctx context.Context, now time.Time) error {
	batch := ingest.BatchInput{
		Readings: make([]ingest.ReadingInput, 0, len(p.generators)),
	}
	for _, g := range p.generators {
		batch.Readings = append(batch.Readings, g.Next(now))
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := p.mqClient.Publish(ctx, body); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	p.logger.Debug("published telemetry envelope", "readings", len(batch.Readings))
	return nil
}
