// Package generator produces synthetic field telemetry for development and
// load testing. Generated values follow plausible agronomic patterns: a daily
// temperature cycle, a slow soil moisture random walk with occasional drought
// episodes, precipitation bursts and rare pest sightings.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"agrosolutions.dev/agro-pipeline/internal/ingest"
)

// Field describes a synthetic agricultural plot.
type Field struct {
	FieldID string `fake:"{uuid}"`
	FarmID  string `fake:"{uuid}"`
	Name    string `fake:"{farmanimal} paddock"`
}

// NewField generates a random field.
func NewField() *Field {
	var field Field
	if err := gofakeit.Struct(&field); err != nil {
		return nil
	}
	return &field
}

// FieldTelemetry generates aggregated telemetry readings for one field.
type FieldTelemetry struct {
	fieldID          string
	baselineMoisture float64
	baselineTemp     float64
	noise            float64
	moisture         float64
	inDrought        bool
	pestPressure     float64
}

// NewFieldTelemetry creates a generator for the given field with randomized
// baselines. Roughly a fifth of fields start inside a drought episode.
// Uses math/rand, which is acceptable for simulation data.
func NewFieldTelemetry(fieldID string) *FieldTelemetry {
	baselineMoisture := 35 + rand.Float64()*30 // 35-65%
	g := &FieldTelemetry{
		fieldID:          fieldID,
		baselineMoisture: baselineMoisture,
		baselineTemp:     18 + rand.Float64()*12, // 18-30°C
		noise:            1 + rand.Float64()*2,
		moisture:         baselineMoisture,
		inDrought:        rand.Float64() < 0.2,
		pestPressure:     rand.Float64() * 0.05,
	}
	if g.inDrought {
		g.moisture = 10 + rand.Float64()*15 // start well below threshold
	}
	return g
}

// Next produces the next reading for the given wall-clock time.
func (g *FieldTelemetry) Next(t time.Time) ingest.ReadingInput {
	temp := g.temperature(t)
	moisture := g.nextMoisture()
	precipitation := g.precipitation()
	pests := rand.Float64() < g.pestPressure

	return ingest.ReadingInput{
		FieldID:        g.fieldID,
		SoilMoisture:   &moisture,
		AirTemperature: &temp,
		Precipitation:  &precipitation,
		IsRichInPests:  &pests,
	}
}

// temperature follows a daily cycle peaking in the early afternoon.
func (g *FieldTelemetry) temperature(t time.Time) float64 {
	hour := float64(t.Hour())
	dailyCycle := 6 * math.Sin((hour-6)*math.Pi/12)
	noise := (rand.Float64() - 0.5) * g.noise

	// Occasional heat spikes push pest-risk territory.
	spike := 0.0
	if rand.Float64() < 0.05 {
		spike = rand.Float64() * 8
	}

	return g.baselineTemp + dailyCycle + noise + spike
}

// nextMoisture advances the soil moisture random walk. Drought episodes decay
// toward a dry floor and occasionally break; healthy fields drift around
// their baseline.
func (g *FieldTelemetry) nextMoisture() float64 {
	if g.inDrought {
		g.moisture -= rand.Float64() * 0.5
		if g.moisture < 5 {
			g.moisture = 5
		}
		// Droughts break rarely, pushing moisture back up.
		if rand.Float64() < 0.02 {
			g.inDrought = false
			g.moisture = g.baselineMoisture
		}
		return g.moisture
	}

	g.moisture += (rand.Float64() - 0.5) * 2
	if g.moisture > 95 {
		g.moisture = 95
	}

	// Dry spells begin occasionally.
	if rand.Float64() < 0.01 {
		g.inDrought = true
	}
	return g.moisture
}

// precipitation is mostly zero with occasional rain events.
func (g *FieldTelemetry) precipitation() float64 {
	if rand.Float64() < 0.1 {
		return rand.Float64() * 12 // mm
	}
	return 0
}
