package store

import (
	"context"
	"time"
)

// Store is the storage collaborator the ingestion pipeline and alert engine
// depend on. Batch operations are atomic at the granularity passed in: a
// SaveReadings call either fully succeeds or fully fails.
type Store interface {
	// SaveReading persists a single reading.
	SaveReading(ctx context.Context, reading *SensorReading) error

	// SaveReadings persists a batch of readings in one write.
	SaveReadings(ctx context.Context, readings []*SensorReading) error

	// ReadingsByFieldID returns all readings for a field.
	ReadingsByFieldID(ctx context.Context, fieldID string) ([]*SensorReading, error)

	// ReadingsByCreatedAtRange returns readings ingested within
	// [start, end], boundaries inclusive.
	ReadingsByCreatedAtRange(ctx context.Context, start, end time.Time) ([]*SensorReading, error)

	// FieldExists reports whether the field is known.
	FieldExists(ctx context.Context, fieldID string) (bool, error)

	// SaveAlerts persists a batch of new alerts in one write.
	SaveAlerts(ctx context.Context, alerts []*Alert) error

	// UpdateAlerts persists changes to existing alerts in one write.
	UpdateAlerts(ctx context.Context, alerts []*Alert) error

	// EnabledAlertsCreatedBefore returns enabled alerts with
	// CreatedAt <= cutoff.
	EnabledAlertsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Alert, error)

	// AlertsByFieldID returns all alerts for a field, newest first.
	AlertsByFieldID(ctx context.Context, fieldID string) ([]*Alert, error)
}
