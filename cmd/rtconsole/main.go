package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rtadmin/internal/backend"
	"rtadmin/internal/cli"
	apphttp "rtadmin/internal/http"
	applog "rtadmin/internal/log"
	"rtadmin/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	photos := services.DefaultPhotoProcessor()
	photos.MaxWidth = cfg.KTPMaxWidth
	photos.MaxHeight = cfg.KTPMaxHeight

	svc := services.New(res.API, services.Options{
		Publisher: res.Publisher,
		Logger:    logger,
		KTP:       photos,
	})

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		API:                res.API,
		StorageURL:         res.StorageURL,
		StorageHandler:     res.StorageHandler,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting RT admin console",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldURL, res.API.BaseURL())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
