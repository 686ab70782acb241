package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"agrosolutions.dev/agro-pipeline/internal/alerts"
	"agrosolutions.dev/agro-pipeline/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Run alert engine operations once",
	Long: `Run a single alert engine operation against the database and exit.
Useful for manual runs and external schedulers; the server runs the same
operations on its internal schedule.`,
}

var alertsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Evaluate alert rules over the last hour's readings",
	RunE:  runAlertsGenerate,
}

var alertsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deactivate the previous day's alerts",
	RunE:  runAlertsSweep,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsGenerateCmd)
	alertsCmd.AddCommand(alertsSweepCmd)

	alertsCmd.PersistentFlags().String("db-host", "localhost", "PostgreSQL host")
	alertsCmd.PersistentFlags().Int("db-port", 5432, "PostgreSQL port")
	alertsCmd.PersistentFlags().String("db-user", "postgres", "PostgreSQL user")
	alertsCmd.PersistentFlags().String("db-password", "", "PostgreSQL password")
	alertsCmd.PersistentFlags().String("db-name", "agro", "PostgreSQL database name")
	alertsCmd.PersistentFlags().String("db-sslmode", "disable", "PostgreSQL SSL mode")

	_ = viper.BindPFlag("alerts.db.host", alertsCmd.PersistentFlags().Lookup("db-host"))
	_ = viper.BindPFlag("alerts.db.port", alertsCmd.PersistentFlags().Lookup("db-port"))
	_ = viper.BindPFlag("alerts.db.user", alertsCmd.PersistentFlags().Lookup("db-user"))
	_ = viper.BindPFlag("alerts.db.password", alertsCmd.PersistentFlags().Lookup("db-password"))
	_ = viper.BindPFlag("alerts.db.name", alertsCmd.PersistentFlags().Lookup("db-name"))
	_ = viper.BindPFlag("alerts.db.sslmode", alertsCmd.PersistentFlags().Lookup("db-sslmode"))
}

func openAlertsStore(logger *slog.Logger) (*gorm.DB, store.Store, error) {
	db, err := store.NewDB(&store.DBConfig{
		Host:     viper.GetString("alerts.db.host"),
		Port:     viper.GetInt("alerts.db.port"),
		User:     viper.GetString("alerts.db.user"),
		Password: viper.GetString("alerts.db.password"),
		DBName:   viper.GetString("alerts.db.name"),
		SSLMode:  viper.GetString("alerts.db.sslmode"),
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewGorm(db, logger)
	if err != nil {
		_ = store.CloseDB(db, logger)
		return nil, nil, err
	}
	return db, st, nil
}

func runAlertsGenerate(_ *cobra.Command, _ []string) error {
	logger := GetLogger()

	db, st, err := openAlertsStore(logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer func() {
		if err := store.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	evaluator, err := alerts.NewEvaluator(&alerts.EvaluatorConfig{
		Logger: logger.With(slog.String("component", "evaluator")),
		Store:  st,
	})
	if err != nil {
		return err
	}

	res := evaluator.GenerateAlerts(context.Background())
	summary := res.Value
	logger.Info("alert generation finished",
		"alerts_created", summary.AlertsCreated,
		"fields_processed", summary.FieldsProcessed,
		"errors", len(summary.Errors),
		"duration", summary.ProcessingTime,
	)
	if !res.Succeeded {
		return errors.New("alert generation failed: " + res.Messages()[0])
	}
	return nil
}

func runAlertsSweep(_ *cobra.Command, _ []string) error {
	logger := GetLogger()

	db, st, err := openAlertsStore(logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer func() {
		if err := store.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	lifecycle, err := alerts.NewLifecycle(&alerts.LifecycleConfig{
		Logger: logger.With(slog.String("component", "lifecycle")),
		Store:  st,
	})
	if err != nil {
		return err
	}

	res := lifecycle.DeactivateStaleAlerts(context.Background())
	logger.Info("deactivation sweep finished", "alerts_deactivated", res.Value)
	if !res.Succeeded {
		return errors.New("deactivation sweep failed: " + res.Messages()[0])
	}
	return nil
}
