package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/auth"
	"tresor/internal/backend"
	"tresor/internal/cli"
	"tresor/internal/core"
	apphttp "tresor/internal/http"
	"tresor/internal/ocr"
	"tresor/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err)
		os.Exit(1)
	}
	store := result.Backend
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	var publisher services.SyncPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	authSvc := auth.NewService(auth.Config{
		Users:      store,
		JWTSecret:  cfg.JWTSecret,
		Expiration: cfg.JWTExpiration,
	})
	txSvc := services.NewTransactionService(store, result.SyncQueue, publisher)
	budgetSvc := services.NewBudgetService(store, store)
	// The API returns fired alerts in the evaluate response; broker
	// fan-out is the alert worker's job.
	alertSvc := services.NewAlertService(store, store, store, alerts.LogNotifier{})
	ocrClient := ocr.NewClient(ocr.Config{BaseURL: cfg.OCRBaseURL, Timeout: cfg.OCRTimeout})
	receiptSvc := services.NewReceiptService(ocrClient, store, txSvc)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:         authSvc,
		Transactions: txSvc,
		Budgets:      budgetSvc,
		Alerts:       alertSvc,
		Receipts:     receiptSvc,
		Snapshots: func(ctx context.Context, userID, month string) (services.Snapshot, error) {
			mk, err := core.ParseMonthKey(month)
			if err != nil {
				return services.Snapshot{}, err
			}
			return services.LoadSnapshot(ctx, store, userID, mk)
		},
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting tresor server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
