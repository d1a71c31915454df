// Command rt-devapi serves the RT REST API from a local sqlite database, for
// running the console without the production backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rtadmin/internal/cli"
	"rtadmin/internal/config"
	"rtadmin/internal/devapi"
	applog "rtadmin/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentDevAPI)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateDevAPI)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	var handler http.Handler = devapi.New(repo, cfg.DevAPIStorageDir, logger)
	handler = applog.ComponentMiddleware(applog.ComponentDevAPI)(handler)
	handler = applog.Middleware(logger)(handler)

	srv := &http.Server{
		Addr:              ":" + cfg.DevAPIPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close SQLite repository", applog.FieldError, err)
		}
	})

	logger.Info("Starting RT dev API",
		"port", cfg.DevAPIPort,
		"db_path", cfg.SQLiteDBPath,
		"storage_dir", cfg.DevAPIStorageDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
