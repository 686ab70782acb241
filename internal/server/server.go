package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrosolutions.dev/agro-pipeline/internal/alerts"
	"agrosolutions.dev/agro-pipeline/internal/ingest"
	"agrosolutions.dev/agro-pipeline/internal/store"
	"agrosolutions.dev/agro-pipeline/pkg/metrics"
	"agrosolutions.dev/agro-pipeline/pkg/mq"
)

// Server is the long-running ingestion service: it consumes telemetry from
// RabbitMQ, persists it to PostgreSQL and runs the alert engine on schedule.
type Server struct {
	logger *slog.Logger
	config *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// RabbitMQ configuration
	RabbitMQURL string
	QueueName   string

	// Alert schedules (cron specs, UTC); empty means defaults.
	GenerateSchedule string
	SweepSchedule    string

	// MetricsPort serves the Prometheus endpoint; 0 disables it.
	MetricsPort int
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}
	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}
	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}
	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}
	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingestion server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	db, err := store.NewDB(&store.DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := store.CloseDB(db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}()

	st, err := store.NewGorm(db, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics("agro_pipeline")
	alertMetrics := metrics.NewAlertMetrics("agro_pipeline")
	mqMetrics := metrics.NewMQMetrics("agro_pipeline")

	pipeline, err := ingest.NewPipeline(&ingest.PipelineConfig{
		Logger:  s.logger.With(slog.String("component", "pipeline")),
		Store:   st,
		Metrics: pipelineMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	evaluator, err := alerts.NewEvaluator(&alerts.EvaluatorConfig{
		Logger:  s.logger.With(slog.String("component", "evaluator")),
		Store:   st,
		Metrics: alertMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	lifecycle, err := alerts.NewLifecycle(&alerts.LifecycleConfig{
		Logger:  s.logger.With(slog.String("component", "lifecycle")),
		Store:   st,
		Metrics: alertMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create lifecycle manager: %w", err)
	}

	mqClient := mq.NewClient(s.config.QueueName, s.config.RabbitMQURL,
		s.logger.With(slog.String("component", "mq-client")))
	mqClient.SetMetrics(mqMetrics)

	consumer, err := NewConsumer(&ConsumerConfig{
		Logger:   s.logger.With(slog.String("component", "consumer")),
		Pipeline: pipeline,
		MQClient: mqClient,
		Queue:    s.config.QueueName,
		Metrics:  pipelineMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	scheduler, err := NewScheduler(&SchedulerConfig{
		Logger:           s.logger.With(slog.String("component", "scheduler")),
		Evaluator:        evaluator,
		Lifecycle:        lifecycle,
		GenerateSchedule: s.config.GenerateSchedule,
		SweepSchedule:    s.config.SweepSchedule,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start(ctx)

	var metricsServer *http.Server
	if s.config.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("metrics endpoint listening", "port", s.config.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	s.logger.Info("ingestion server started", "queue", s.config.QueueName)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context canceled")
	}

	cancel()
	scheduler.Stop()

	if err := consumer.Stop(); err != nil {
		s.logger.Error("failed to stop consumer", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down metrics server", "error", err)
		}
	}

	s.logger.Info("ingestion server stopped")
	return nil
}
