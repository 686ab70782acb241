// Package ingest implements the telemetry ingestion pipeline: validated
// reading construction from untrusted input and single, sequential-batch and
// parallel-batch submission with partial-failure bookkeeping.
package ingest

import "time"

// ReadingInput is the untrusted telemetry submission shape. It carries both
// the legacy single-sensor fields and the aggregated telemetry fields; a
// non-empty SensorType selects the legacy shape.
type ReadingInput struct {
	FieldID          string            `json:"field_id"`
	SensorType       string            `json:"sensor_type,omitempty"`
	Value            *float64          `json:"value,omitempty"`
	Unit             string            `json:"unit,omitempty"`
	ReadingTimestamp *time.Time        `json:"reading_timestamp,omitempty"`
	Location         string            `json:"location,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	SoilMoisture     *float64          `json:"soil_moisture,omitempty"`
	AirTemperature   *float64          `json:"air_temperature,omitempty"`
	Precipitation    *float64          `json:"precipitation,omitempty"`
	IsRichInPests    *bool             `json:"is_rich_in_pests,omitempty"`
}

// BatchInput is a caller-submitted group of readings ingested together,
// validated independently but persisted atomically.
type BatchInput struct {
	Readings []ReadingInput `json:"readings"`
}
