// Package store defines the persistent entities of the telemetry system and
// the storage collaborator the pipeline and alert engine write through.
package store

import (
	"time"

	"github.com/google/uuid"
)

// AlertStatus enumerates the derived conditions an alert can signal.
type AlertStatus string

const (
	StatusNormal       AlertStatus = "normal"
	StatusDroughtAlert AlertStatus = "drought_alert"
	StatusPestRisk     AlertStatus = "pest_risk"
)

// SensorReading is a field-scoped telemetry sample. A reading carries exactly
// one of two shapes: the legacy single-sensor shape (SensorType, Value, Unit,
// ReadingTimestamp) or the aggregated shape (SoilMoisture, AirTemperature,
// Precipitation, IsRichInPests). Identity is generated at construction, not
// by storage.
type SensorReading struct {
	ID      string `gorm:"type:uuid;primaryKey"`
	FieldID string `gorm:"type:uuid;index:idx_readings_field;not null"`

	// Legacy single-sensor shape.
	SensorType       string
	Value            *float64
	Unit             string
	ReadingTimestamp *time.Time
	Location         string
	Metadata         map[string]string `gorm:"serializer:json"`

	// Aggregated telemetry shape.
	SoilMoisture   *float64
	AirTemperature *float64
	Precipitation  *float64
	IsRichInPests  *bool

	CreatedAt time.Time `gorm:"index:idx_readings_created_at;not null"`
}

// TableName specifies the table name for the SensorReading model.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// Alert is a derived signal about a field's condition. Alerts are created
// enabled and flipped off by the daily sweep; they are never deleted.
type Alert struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	FieldID   string      `gorm:"type:uuid;index:idx_alerts_field;not null"`
	Status    AlertStatus `gorm:"not null"`
	IsEnable  bool        `gorm:"index:idx_alerts_enabled;not null"`
	CreatedAt time.Time   `gorm:"index:idx_alerts_created_at;not null"`
}

// TableName specifies the table name for the Alert model.
func (Alert) TableName() string {
	return "alerts"
}

// NewAlert creates an enabled alert for a field, stamped with the caller's
// clock so the creation time matches the evaluation time. The field id comes
// from validated readings and is never empty by the time alerts are derived.
func NewAlert(fieldID string, status AlertStatus, createdAt time.Time) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		FieldID:   fieldID,
		Status:    status,
		IsEnable:  true,
		CreatedAt: createdAt.UTC(),
	}
}

// Disable deactivates the alert.
func (a *Alert) Disable() {
	a.IsEnable = false
}

// Enable reactivates the alert.
func (a *Alert) Enable() {
	a.IsEnable = true
}

// UpdateStatus changes the alert's status.
func (a *Alert) UpdateStatus(status AlertStatus) {
	a.Status = status
}

// Field is an agricultural plot that readings and alerts are scoped to.
type Field struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	FarmID    string    `gorm:"type:uuid;index:idx_fields_farm"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for the Field model.
func (Field) TableName() string {
	return "fields"
}
