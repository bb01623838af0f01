package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tresor/internal/alerts"
	"tresor/internal/amqp"
	"tresor/internal/cli"
	"tresor/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting alert-worker", "interval", cfg.AlertInterval)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	notifierFor := func(userID string) alerts.Notifier {
		if amqpClient != nil {
			return amqp.NewAlertNotifier(amqpClient, userID)
		}
		return alerts.LogNotifier{}
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

	alertWorker := worker.NewAlertWorker(repo, notifierFor, cfg.AlertInterval)
	if err := alertWorker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Alert worker stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("alert-worker stopped gracefully")
}
