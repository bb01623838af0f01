package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tresor/internal/cli"
	"tresor/internal/services"
	"tresor/internal/sheets"
	gsheet "tresor/internal/sheets/google"
	sheetmem "tresor/internal/sheets/memory"
	"tresor/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting tresor-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var writer sheets.TransactionWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		writer = client
	} else {
		// Without a spreadsheet the queue still drains, rows just stay
		// in process. Keeps local development broker-complete.
		logger.Info("Google Sheets disabled, exported rows stay in memory")
		writer = sheetmem.New()
	}

	processor := services.NewSyncProcessor(repo, writer, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   3,
	})

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	exportWorker := worker.NewExportWorker(processor, amqpClient)
	if err := exportWorker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Export worker stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("tresor-worker stopped gracefully")
}
