package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrosolutions.dev/agro-pipeline/internal/generator"
	"agrosolutions.dev/agro-pipeline/internal/store"
	"agrosolutions.dev/agro-pipeline/pkg/mq"
)

var generatorCmd = &cobra.Command{
	Use:   "generator",
	Short: "Run the telemetry generator",
	Long: `Run the telemetry generator that:
- Generates synthetic field telemetry with agronomic patterns
- Publishes batch envelopes to RabbitMQ
- Optionally seeds the generated fields into the database so the alert
  engine recognizes them`,
	RunE: runGenerator,
}

func init() {
	rootCmd.AddCommand(generatorCmd)

	generatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	generatorCmd.Flags().String("queue-name", "field-telemetry", "RabbitMQ queue name for telemetry envelopes")
	generatorCmd.Flags().Int("field-count", 10, "Number of fields to simulate")
	generatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between envelopes")
	generatorCmd.Flags().Bool("seed-db", false, "Persist the generated fields to the database before publishing")
	generatorCmd.Flags().String("db-host", "localhost", "PostgreSQL host (used with --seed-db)")
	generatorCmd.Flags().Int("db-port", 5432, "PostgreSQL port (used with --seed-db)")
	generatorCmd.Flags().String("db-user", "postgres", "PostgreSQL user (used with --seed-db)")
	generatorCmd.Flags().String("db-password", "", "PostgreSQL password (used with --seed-db)")
	generatorCmd.Flags().String("db-name", "agro", "PostgreSQL database name (used with --seed-db)")
	generatorCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode (used with --seed-db)")

	_ = viper.BindPFlag("generator.rabbitmq.url", generatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("generator.rabbitmq.queue_name", generatorCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("generator.field_count", generatorCmd.Flags().Lookup("field-count"))
	_ = viper.BindPFlag("generator.interval", generatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("generator.seed_db", generatorCmd.Flags().Lookup("seed-db"))
	_ = viper.BindPFlag("generator.db.host", generatorCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("generator.db.port", generatorCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("generator.db.user", generatorCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("generator.db.password", generatorCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("generator.db.name", generatorCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("generator.db.sslmode", generatorCmd.Flags().Lookup("db-sslmode"))
}

func runGenerator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting telemetry generator")

	fieldCount := viper.GetInt("generator.field_count")
	if fieldCount <= 0 {
		return errors.New("field count must be positive")
	}

	fields := make([]*generator.Field, 0, fieldCount)
	for range fieldCount {
		field := generator.NewField()
		if field == nil {
			return errors.New("failed to generate field")
		}
		fields = append(fields, field)
	}

	if viper.GetBool("generator.seed_db") {
		if err := seedFields(logger, fields); err != nil {
			logger.Error("failed to seed fields", "error", err)
			return err
		}
		logger.Info("seeded fields into database", "count", len(fields))
	}

	queueName := viper.GetString("generator.rabbitmq.queue_name")
	mqClient := mq.NewClient(queueName, viper.GetString("generator.rabbitmq.url"),
		logger.With(slog.String("component", "mq-client")))
	defer func() {
		if err := mqClient.Close(); err != nil {
			logger.Error("failed to close mq client", "error", err)
		}
	}()

	publisher, err := generator.NewPublisher(&generator.PublisherConfig{
		Logger:   logger.With(slog.String("component", "publisher")),
		MQClient: mqClient,
		Fields:   fields,
		Interval: viper.GetDuration("generator.interval"),
	})
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		return err
	}

	logger.Info("generator configuration",
		"queue", queueName,
		"field_count", fieldCount,
		"interval", viper.GetDuration("generator.interval"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := publisher.Run(ctx); err != nil {
		logger.Error("publisher error", "error", err)
		return err
	}

	logger.Info("telemetry generator stopped")
	return nil
}

// seedFields persists the generated fields so alert generation recognizes
// their readings.
func seedFields(logger *slog.Logger, fields []*generator.Field) error {
	db, err := store.NewDB(&store.DBConfig{
		Host:     viper.GetString("generator.db.host"),
		Port:     viper.GetInt("generator.db.port"),
		User:     viper.GetString("generator.db.user"),
		Password: viper.GetString("generator.db.password"),
		DBName:   viper.GetString("generator.db.name"),
		SSLMode:  viper.GetString("generator.db.sslmode"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	st, err := store.NewGorm(db, logger)
	if err != nil {
		return err
	}

	records := make([]*store.Field, 0, len(fields))
	for _, f := range fields {
		records = append(records, &store.Field{
			ID:     f.FieldID,
			FarmID: f.FarmID,
			Name:   f.Name,
		})
	}
	return st.SaveFields(context.Background(), records)
}
