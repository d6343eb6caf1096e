package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	gsheet "spendwise/internal/sheets/google"
	"spendwise/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load env file", log.FieldError, err)
		os.Exit(1)
	}

	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.Info("Starting spendwise-worker")
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// The worker consumes with its own client below and never publishes.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		_ = res.Cleanup()
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	if err := mirror.EnsureHeader(ctx); err != nil {
		_ = res.Cleanup()
		return fmt.Errorf("prepare sheet header: %w", err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		amqp.WithLogger(logger),
		amqp.WithPrefetch(cfg.SyncBatchSize))
	if err != nil {
		_ = res.Cleanup()
		return fmt.Errorf("initialize AMQP client: %w", err)
	}

	runErr := worker.NewSyncWorker(res.Store, mirror, cfg.SyncInterval, logger).Run(ctx, consumer)

	shutdownErr := cli.GracefulShutdown(logger, shutdownTimeout,
		cli.ShutdownStep{Name: "amqp consumer", Fn: func(context.Context) error { return consumer.Close() }},
		cli.ShutdownStep{Name: "backend", Fn: func(context.Context) error { return res.Cleanup() }},
	)
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}
