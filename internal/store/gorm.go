package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Gorm is the PostgreSQL-backed Store implementation.
type Gorm struct {
	logger *slog.Logger
	db     *gorm.DB
}

// NewGorm creates a Store backed by the given database handle.
func NewGorm(db *gorm.DB, logger *slog.Logger) (*Gorm, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Gorm{logger: logger, db: db}, nil
}

// SaveReading persists a single reading.
func (g *Gorm) SaveReading(ctx context.Context, reading *SensorReading) error {
	if err := g.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}
	return nil
}

// SaveReadings persists a batch of readings in one insert.
func (g *Gorm) SaveReadings(ctx context.Context, readings []*SensorReading) error {
	if len(readings) == 0 {
		return nil
	}
	if err := g.db.WithContext(ctx).Create(&readings).Error; err != nil {
		return fmt.Errorf("failed to save readings: %w", err)
	}
	return nil
}

// ReadingsByFieldID returns all readings for a field.
func (g *Gorm) ReadingsByFieldID(ctx context.Context, fieldID string) ([]*SensorReading, error) {
	var readings []*SensorReading
	if err := g.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch readings for field %s: %w", fieldID, err)
	}
	return readings, nil
}

// ReadingsByCreatedAtRange returns readings ingested within [start, end].
func (g *Gorm) ReadingsByCreatedAtRange(ctx context.Context, start, end time.Time) ([]*SensorReading, error) {
	var readings []*SensorReading
	if err := g.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch readings by range: %w", err)
	}
	return readings, nil
}

// FieldExists reports whether the field is known.
func (g *Gorm) FieldExists(ctx context.Context, fieldID string) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).
		Model(&Field{}).
		Where("id = ?", fieldID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check field %s: %w", fieldID, err)
	}
	return count > 0, nil
}

// SaveAlerts persists a batch of new alerts in one insert.
func (g *Gorm) SaveAlerts(ctx context.Context, alerts []*Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if err := g.db.WithContext(ctx).Create(&alerts).Error; err != nil {
		return fmt.Errorf("failed to save alerts: %w", err)
	}
	return nil
}

// UpdateAlerts persists changes to existing alerts in one transaction.
func (g *Gorm) UpdateAlerts(ctx context.Context, alerts []*Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, alert := range alerts {
			if err := tx.Save(alert).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update alerts: %w", err)
	}
	return nil
}

// EnabledAlertsCreatedBefore returns enabled alerts with CreatedAt <= cutoff.
func (g *Gorm) EnabledAlertsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Alert, error) {
	var alerts []*Alert
	if err := g.db.WithContext(ctx).
		Where("is_enable = ? AND created_at <= ?", true, cutoff).
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch enabled alerts: %w", err)
	}
	return alerts, nil
}

// AlertsByFieldID returns all alerts for a field, newest first.
func (g *Gorm) AlertsByFieldID(ctx context.Context, fieldID string) ([]*Alert, error) {
	var alerts []*Alert
	if err := g.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch alerts for field %s: %w", fieldID, err)
	}
	return alerts, nil
}

// SaveFields persists fields; used by the seeding flow, not part of Store.
func (g *Gorm) SaveFields(ctx context.Context, fields []*Field) error {
	if len(fields) == 0 {
		return nil
	}
	if err := g.db.WithContext(ctx).Create(&fields).Error; err != nil {
		return fmt.Errorf("failed to save fields: %w", err)
	}
	return nil
}

var _ Store = (*Gorm)(nil)
