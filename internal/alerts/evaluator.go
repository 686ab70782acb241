// Package alerts derives operational alerts from recent telemetry: a
// time-windowed rule evaluator that creates drought and pest-risk alerts, and
// a lifecycle sweep that deactivates the previous day's alerts.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agrosolutions.dev/agro-pipeline/internal/result"
	"agrosolutions.dev/agro-pipeline/internal/store"
	"agrosolutions.dev/agro-pipeline/pkg/metrics"
)

const (
	// droughtThreshold is the soil moisture percentage below which a field is
	// considered in drought.
	droughtThreshold = 30.0

	// droughtWindow is the trailing period over which every soil moisture
	// reading must stay below the threshold for a drought alert to fire.
	droughtWindow = 24 * time.Hour

	// pestTempThreshold is the mean air temperature in °C above which pest
	// risk is assumed.
	pestTempThreshold = 30.0

	// groupingWindow is the recency window whose readings are grouped per
	// field for each evaluation run.
	groupingWindow = time.Hour
)

const keyAlert = "Alert"

// CreationSummary reports the outcome of one alert generation run.
type CreationSummary struct {
	AlertsCreated   int           `json:"alerts_created"`
	FieldsProcessed int           `json:"fields_processed"`
	Errors          []string      `json:"errors"`
	Success         bool          `json:"success"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// Evaluator runs the alert rules over recent readings grouped by field.
type Evaluator struct {
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.AlertMetrics // optional
	now     func() time.Time
}

// EvaluatorConfig holds the configuration for the Evaluator.
type EvaluatorConfig struct {
	Logger  *slog.Logger
	Store   store.Store
	Metrics *metrics.AlertMetrics
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// NewEvaluator creates a new Evaluator instance.
func NewEvaluator(cfg *EvaluatorConfig) (*Evaluator, error) {
	if cfg == nil {
		return nil, errors.New("evaluator config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Evaluator{
		logger:  cfg.Logger,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// GenerateAlerts evaluates the drought and pest-risk rules over the last
// hour's readings grouped by field, and persists all fired alerts in one
// batch write. Per-field failures are recorded and skipped; no error raises
// past this boundary.
func (e *Evaluator) GenerateAlerts(ctx context.Context) result.Result[*CreationSummary] {
	start := e.now()
	summary := &CreationSummary{Success: true, Errors: []string{}}

	now := e.now()
	readings, err := e.store.ReadingsByCreatedAtRange(ctx, now.Add(-groupingWindow), now)
	if err != nil {
		e.logger.Error("failed to fetch recent readings", "error", err)
		summary.Success = false
		summary.Errors = append(summary.Errors, err.Error())
		summary.ProcessingTime = e.now().Sub(start)
		return result.FailureWith(summary, result.Notification{
			Key:     keyAlert,
			Message: fmt.Sprintf("Failed to create alerts: %v", err),
		})
	}

	if len(readings) == 0 {
		e.logger.Info("no sensor readings found from the last hour")
		summary.ProcessingTime = e.now().Sub(start)
		return result.Success(summary)
	}

	var toCreate []*store.Alert
	for fieldID, group := range groupByField(readings) {
		summary.FieldsProcessed++

		exists, err := e.store.FieldExists(ctx, fieldID)
		if err != nil {
			e.recordFieldError(summary, fieldID, err)
			continue
		}
		if !exists {
			e.logger.Warn("field not found, skipping alert generation", "field_id", fieldID)
			summary.Errors = append(summary.Errors, fmt.Sprintf("Field %s not found", fieldID))
			continue
		}

		drought, err := e.droughtCondition(ctx, fieldID, now)
		if err != nil {
			e.recordFieldError(summary, fieldID, err)
			continue
		}
		if drought {
			toCreate = append(toCreate, store.NewAlert(fieldID, store.StatusDroughtAlert, now))
			summary.AlertsCreated++
		}

		if pestRiskCondition(group) {
			toCreate = append(toCreate, store.NewAlert(fieldID, store.StatusPestRisk, now))
			summary.AlertsCreated++
		}
	}

	if len(toCreate) > 0 {
		if err := e.store.SaveAlerts(ctx, toCreate); err != nil {
			e.logger.Error("failed to save alerts", "count", len(toCreate), "error", err)
			summary.Success = false
			summary.Errors = append(summary.Errors, fmt.Sprintf("Failed to save alerts: %v", err))
			summary.ProcessingTime = e.now().Sub(start)
			return result.FailureWith(summary, result.Notification{
				Key:     keyAlert,
				Message: fmt.Sprintf("Failed to create alerts: %v", err),
			})
		}

		e.logger.Info("created alerts",
			"count", len(toCreate),
			"fields_processed", summary.FieldsProcessed,
		)
		if e.metrics != nil {
			for _, alert := range toCreate {
				e.metrics.AlertsCreated.WithLabelValues(string(alert.Status)).Inc()
			}
		}
	}

	summary.ProcessingTime = e.now().Sub(start)
	if e.metrics != nil {
		e.metrics.FieldsProcessed.Add(float64(summary.FieldsProcessed))
		e.metrics.EvaluationDuration.Observe(summary.ProcessingTime.Seconds())
	}
	return result.Success(summary)
}

func (e *Evaluator) recordFieldError(summary *CreationSummary, fieldID string, err error) {
	e.logger.Error("error processing alerts for field", "field_id", fieldID, "error", err)
	summary.Errors = append(summary.Errors, fmt.Sprintf("Error processing field %s: %v", fieldID, err))
	if e.metrics != nil {
		e.metrics.EvaluationErrors.Inc()
	}
}

// droughtCondition reports whether every soil moisture reading of the field
// within the trailing 24 hours is strictly below the threshold. An empty
// history abstains: a sustained trend is required, not the absence of data.
func (e *Evaluator) droughtCondition(ctx context.Context, fieldID string, now time.Time) (bool, error) {
	readings, err := e.store.ReadingsByFieldID(ctx, fieldID)
	if err != nil {
		return false, err
	}

	cutoff := now.Add(-droughtWindow)
	sampled := false
	for _, r := range readings {
		if r.SoilMoisture == nil || r.CreatedAt.Before(cutoff) {
			continue
		}
		if *r.SoilMoisture >= droughtThreshold {
			return false, nil
		}
		sampled = true
	}
	return sampled, nil
}

// pestRiskCondition reports pest risk for the current group: any explicit
// pest flag is sufficient, otherwise the mean of the present air temperature
// values must exceed the threshold. No temperatures and no flag means no
// alert.
func pestRiskCondition(group []*store.SensorReading) bool {
	var sum float64
	var count int
	for _, r := range group {
		if r.IsRichInPests != nil && *r.IsRichInPests {
			return true
		}
		if r.AirTemperature != nil {
			sum += *r.AirTemperature
			count++
		}
	}
	return count > 0 && sum/float64(count) > pestTempThreshold
}

func groupByField(readings []*store.SensorReading) map[string][]*store.SensorReading {
	groups := make(map[string][]*store.SensorReading)
	for _, r := range readings {
		groups[r.FieldID] = append(groups[r.FieldID], r)
	}
	return groups
}
