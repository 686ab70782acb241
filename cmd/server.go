package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrosolutions.dev/agro-pipeline/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the ingestion server",
	Long: `Run the ingestion server that:
- Consumes field telemetry envelopes from RabbitMQ
- Persists readings to PostgreSQL
- Generates drought and pest-risk alerts on schedule
- Deactivates the previous day's alerts once per day`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "agro", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serverCmd.Flags().String("queue-name", "field-telemetry", "RabbitMQ queue name for telemetry envelopes")
	serverCmd.Flags().String("generate-schedule", "", "cron spec for alert generation (default @hourly, UTC)")
	serverCmd.Flags().String("sweep-schedule", "", "cron spec for the deactivation sweep (default 30 0 * * *, UTC)")
	serverCmd.Flags().Int("metrics-port", 2112, "Prometheus metrics port (0 disables)")

	_ = viper.BindPFlag("server.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("server.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("server.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("server.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("server.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("server.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.queue_name", serverCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("server.alerts.generate_schedule", serverCmd.Flags().Lookup("generate-schedule"))
	_ = viper.BindPFlag("server.alerts.sweep_schedule", serverCmd.Flags().Lookup("sweep-schedule"))
	_ = viper.BindPFlag("server.metrics.port", serverCmd.Flags().Lookup("metrics-port"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting ingestion service")

	config := &server.ServerConfig{
		Logger:           logger,
		DBHost:           viper.GetString("server.db.host"),
		DBPort:           viper.GetInt("server.db.port"),
		DBUser:           viper.GetString("server.db.user"),
		DBPassword:       viper.GetString("server.db.password"),
		DBName:           viper.GetString("server.db.name"),
		DBSSLMode:        viper.GetString("server.db.sslmode"),
		RabbitMQURL:      viper.GetString("server.rabbitmq.url"),
		QueueName:        viper.GetString("server.rabbitmq.queue_name"),
		GenerateSchedule: viper.GetString("server.alerts.generate_schedule"),
		SweepSchedule:    viper.GetString("server.alerts.sweep_schedule"),
		MetricsPort:      viper.GetInt("server.metrics.port"),
	}

	srv, err := server.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
		"metrics_port", config.MetricsPort,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
