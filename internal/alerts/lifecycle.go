package alerts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agrosolutions.dev/agro-pipeline/internal/result"
	"agrosolutions.dev/agro-pipeline/internal/store"
	"agrosolutions.dev/agro-pipeline/pkg/metrics"
)

// Lifecycle runs the daily deactivation sweep over previously created alerts.
type Lifecycle struct {
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.AlertMetrics // optional
	now     func() time.Time
}

// LifecycleConfig holds the configuration for the Lifecycle manager.
type LifecycleConfig struct {
	Logger  *slog.Logger
	Store   store.Store
	Metrics *metrics.AlertMetrics
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// NewLifecycle creates a new Lifecycle instance.
func NewLifecycle(cfg *LifecycleConfig) (*Lifecycle, error) {
	if cfg == nil {
		return nil, errors.New("lifecycle config cannot be nil")
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

	return &Lifecycle{
		logger:  cfg.Logger,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// DeactivateStaleAlerts disables every enabled alert created within
// yesterday's UTC calendar day, boundaries inclusive, and persists the batch
// in one update. Alerts created today or before yesterday are untouched.
// Re-running on the same day finds nothing enabled and returns 0.
func (l *Lifecycle) DeactivateStaleAlerts(ctx context.Context) result.Result[int] {
	start := l.now()

	now := start.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterdayStart := midnight.AddDate(0, 0, -1)
	yesterdayEnd := midnight.Add(-time.Nanosecond)

	alerts, err := l.store.EnabledAlertsCreatedBefore(ctx, yesterdayEnd)
	if err != nil {
		l.logger.Error("failed to fetch enabled alerts", "error", err)
		return result.Failuref[int](keyAlert, "Failed to update alerts: %v", err)
	}

	eligible := make([]*store.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if !alert.CreatedAt.Before(yesterdayStart) && !alert.CreatedAt.After(yesterdayEnd) {
			eligible = append(eligible, alert)
		}
	}

	if len(eligible) == 0 {
		l.logger.Info("no alerts found from previous day to deactivate")
		return result.Success(0)
	}

	for _, alert := range eligible {
		alert.Disable()
	}

	if err := l.store.UpdateAlerts(ctx, eligible); err != nil {
		l.logger.Error("failed to update alerts", "count", len(eligible), "error", err)
		return result.Failuref[int](keyAlert, "Failed to update alerts: %v", err)
	}

	l.logger.Info("deactivated alerts from previous day", "count", len(eligible))
	if l.metrics != nil {
		l.metrics.AlertsDeactivated.Add(float64(len(eligible)))
		l.metrics.SweepDuration.Observe(l.now().Sub(start).Seconds())
	}
	return result.Success(len(eligible))
}
