package main

import (
	"context"
	"errors"
	"os"
	"time"

	"rtadmin/internal/amqp"
	"rtadmin/internal/backend"
	"rtadmin/internal/cli"
	"rtadmin/internal/config"
	applog "rtadmin/internal/log"
	"rtadmin/internal/sheets"
	gsheet "rtadmin/internal/sheets/google"
	"rtadmin/internal/sheets/memory"
	"rtadmin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting rt-ledger-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The worker only reads; it must not publish events of its own.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ledger, err := newLedger(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(res.API.Payments, res.API.Expenses, ledger, logger)
	reconciler := worker.NewReconciler(ledgerWorker, worker.ReconcilerConfig{
		Interval: cfg.SyncInterval,
		OnStart:  true,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := reconciler.Stop(ctx); err != nil {
			logger.Error("Failed to stop reconciler", applog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", applog.FieldError, err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}
	})

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", applog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.Consume(ctx, ledgerWorker.HandleMutation); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger worker stopped")
}

// newLedger mirrors into Google Sheets when a spreadsheet is configured and
// keeps the ledger in memory otherwise.
func newLedger(cfg *config.Config, logger *applog.Logger) (sheets.Ledger, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory ledger")
		return memory.New(), nil
	}
	client, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		PaymentsSheet: cfg.GooglePaymentsSheet,
		ExpensesSheet: cfg.GoogleExpensesSheet,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
