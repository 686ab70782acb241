package ingest

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agrosolutions.dev/agro-pipeline/internal/store"
)

var (
	// ErrEmptyFieldID is returned when the input has no field reference.
	ErrEmptyFieldID = errors.New("field id cannot be empty")

	// ErrMissingUnit is returned when a legacy single-sensor input omits the
	// unit.
	ErrMissingUnit = errors.New("unit cannot be empty")

	// ErrEmptyTelemetry is returned when an aggregated input populates no
	// metric at all.
	ErrEmptyTelemetry = errors.New("at least one telemetry metric must be provided")
)

// NewReading builds a validated, fully-populated SensorReading from untrusted
// input. A non-empty SensorType selects the legacy single-sensor shape
// (requiring a unit; an absent value keeps the historical zero default and an
// absent timestamp defaults to now); otherwise at least one aggregated metric
// must be present. The reading id is generated here, and CreatedAt is set to
// now.
func NewReading(in ReadingInput, now time.Time) (*store.SensorReading, error) {
	if strings.TrimSpace(in.FieldID) == "" {
		return nil, ErrEmptyFieldID
	}

	reading := &store.SensorReading{
		ID:        uuid.NewString(),
		FieldID:   in.FieldID,
		CreatedAt: now,
	}

	if strings.TrimSpace(in.SensorType) != "" {
		if strings.TrimSpace(in.Unit) == "" {
			return nil, ErrMissingUnit
		}

		value := 0.0
		if in.Value != nil {
			value = *in.Value
		}

		timestamp := now
		if in.ReadingTimestamp != nil {
			timestamp = *in.ReadingTimestamp
		}

		reading.SensorType = in.SensorType
		reading.Value = &value
		reading.Unit = in.Unit
		reading.ReadingTimestamp = &timestamp
		reading.Location = in.Location
		reading.Metadata = in.Metadata
		return reading, nil
	}

	if in.SoilMoisture == nil && in.AirTemperature == nil &&
		in.Precipitation == nil && in.IsRichInPests == nil {
		return nil, ErrEmptyTelemetry
	}

	reading.SoilMoisture = in.SoilMoisture
	reading.AirTemperature = in.AirTemperature
	reading.Precipitation = in.Precipitation
	reading.IsRichInPests = in.IsRichInPests
	return reading, nil
}
