package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"agrosolutions.dev/agro-pipeline/internal/alerts"
)

// Default schedules: rule evaluation every hour, deactivation sweep shortly
// after midnight UTC so "yesterday" is complete.
const (
	defaultGenerateSchedule = "@hourly"
	defaultSweepSchedule    = "30 0 * * *"
)

// Scheduler triggers the recurring alert engine runs.
type Scheduler struct {
	logger    *slog.Logger
	cron      *cron.Cron
	evaluator *alerts.Evaluator
	lifecycle *alerts.Lifecycle

	// ctx is set by Start before the cron fires; jobs run under it so an
	// in-flight run observes server shutdown.
	ctx context.Context
}

// SchedulerConfig holds the configuration for the Scheduler.
type SchedulerConfig struct {
	Logger    *slog.Logger
	Evaluator *alerts.Evaluator
	Lifecycle *alerts.Lifecycle
	// GenerateSchedule overrides the alert generation cron spec.
	GenerateSchedule string
	// SweepSchedule overrides the deactivation sweep cron spec.
	SweepSchedule string
}

// NewScheduler creates a scheduler with the alert generation and sweep jobs
// registered. All schedules run in UTC.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Evaluator == nil {
		return nil, errors.New("evaluator cannot be nil")
	}
	if cfg.Lifecycle == nil {
		return nil, errors.New("lifecycle cannot be nil")
	}

	generateSchedule := cfg.GenerateSchedule
	if generateSchedule == "" {
		generateSchedule = defaultGenerateSchedule
	}
	sweepSchedule := cfg.SweepSchedule
	if sweepSchedule == "" {
		sweepSchedule = defaultSweepSchedule
	}

	s := &Scheduler{
		logger:    cfg.Logger,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		evaluator: cfg.Evaluator,
		lifecycle: cfg.Lifecycle,
		ctx:       context.Background(),
	}

	if _, err := s.cron.AddFunc(generateSchedule, s.runGenerate); err != nil {
		return nil, fmt.Errorf("invalid generate schedule %q: %w", generateSchedule, err)
	}
	if _, err := s.cron.AddFunc(sweepSchedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", sweepSchedule, err)
	}

	return s, nil
}

func (s *Scheduler) runGenerate() {
	res := s.evaluator.GenerateAlerts(s.ctx)
	if !res.Succeeded {
		s.logger.Error("scheduled alert generation failed", "errors", res.Messages())
		return
	}
	s.logger.Info("scheduled alert generation finished",
		"alerts_created", res.Value.AlertsCreated,
		"fields_processed", res.Value.FieldsProcessed,
	)
}

func (s *Scheduler) runSweep() {
	res := s.lifecycle.DeactivateStaleAlerts(s.ctx)
	if !res.Succeeded {
		s.logger.Error("scheduled deactivation sweep failed", "errors", res.Messages())
		return
	}
	s.logger.Info("scheduled deactivation sweep finished", "deactivated", res.Value)
}

// Start begins running the scheduled jobs under ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting alert scheduler")
	s.ctx = ctx
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping alert scheduler")
	<-s.cron.Stop().Done()
}
