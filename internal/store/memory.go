package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store used by package tests and local
// development. Error fields, when set, are returned by the corresponding
// operation so callers' failure paths can be exercised.
type Memory struct {
	mu       sync.RWMutex
	readings map[string]*SensorReading
	alerts   map[string]*Alert
	fields   map[string]*Field

	SaveReadingErr  error
	SaveReadingsErr error
	SaveAlertsErr   error
	UpdateAlertsErr error
	ReadErr         error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		readings: make(map[string]*SensorReading),
		alerts:   make(map[string]*Alert),
		fields:   make(map[string]*Field),
	}
}

// AddField registers a field so FieldExists reports it.
func (m *Memory) AddField(field *Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := *field
	m.fields[field.ID] = &f
}

// ReadingCount returns the number of stored readings.
func (m *Memory) ReadingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings)
}

// Alerts returns a snapshot of all stored alerts.
func (m *Memory) Alerts() []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		c := *a
		out = append(out, &c)
	}
	return out
}

// SaveReading persists a single reading.
func (m *Memory) SaveReading(_ context.Context, reading *SensorReading) error {
	if m.SaveReadingErr != nil {
		return m.SaveReadingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *reading
	m.readings[reading.ID] = &r
	return nil
}

// SaveReadings persists a batch of readings atomically.
func (m *Memory) SaveReadings(_ context.Context, readings []*SensorReading) error {
	if m.SaveReadingsErr != nil {
		return m.SaveReadingsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reading := range readings {
		r := *reading
		m.readings[reading.ID] = &r
	}
	return nil
}

// ReadingsByFieldID returns all readings for a field.
func (m *Memory) ReadingsByFieldID(_ context.Context, fieldID string) ([]*SensorReading, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*SensorReading
	for _, r := range m.readings {
		if r.FieldID == fieldID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// ReadingsByCreatedAtRange returns readings ingested within [start, end].
func (m *Memory) ReadingsByCreatedAtRange(_ context.Context, start, end time.Time) ([]*SensorReading, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*SensorReading
	for _, r := range m.readings {
		if !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// FieldExists reports whether the field is known.
func (m *Memory) FieldExists(_ context.Context, fieldID string) (bool, error) {
	if m.ReadErr != nil {
		return false, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.fields[fieldID]
	return ok, nil
}

// SaveAlerts persists a batch of new alerts atomically.
func (m *Memory) SaveAlerts(_ context.Context, alerts []*Alert) error {
	if m.SaveAlertsErr != nil {
		return m.SaveAlertsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, alert := range alerts {
		a := *alert
		m.alerts[alert.ID] = &a
	}
	return nil
}

// UpdateAlerts persists changes to existing alerts atomically.
func (m *Memory) UpdateAlerts(_ context.Context, alerts []*Alert) error {
	if m.UpdateAlertsErr != nil {
		return m.UpdateAlertsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, alert := range alerts {
		a := *alert
		m.alerts[alert.ID] = &a
	}
	return nil
}

// EnabledAlertsCreatedBefore returns enabled alerts with CreatedAt <= cutoff.
func (m *Memory) EnabledAlertsCreatedBefore(_ context.Context, cutoff time.Time) ([]*Alert, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Alert
	for _, a := range m.alerts {
		if a.IsEnable && !a.CreatedAt.After(cutoff) {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// AlertsByFieldID returns all alerts for a field.
func (m *Memory) AlertsByFieldID(_ context.Context, fieldID string) ([]*Alert, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Alert
	for _, a := range m.alerts {
		if a.FieldID == fieldID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
