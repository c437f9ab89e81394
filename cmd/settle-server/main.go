package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"settle/internal/backend"
	"settle/internal/cli"
	apphttp "settle/internal/http"
	"settle/internal/log"
	"settle/internal/report"
	"settle/internal/services"
	"settle/internal/sheets/google"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", "error", envErr)
	}

	ctx := context.Background()

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := services.NewSettleService(res.Backend, report.NewFormatter(cfg.CurrencySymbol), nil, services.NewMetrics(reg), logger)
	srv := apphttp.NewServer(svc, apphttp.Options{
		Addr:      ":" + cfg.Port,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		RateLimit: cfg.RateLimit,
		Registry:  reg,
		Logger:    logger,
	})

	var processor *services.SyncProcessor
	if cfg.SyncInterval > 0 {
		target, ok := res.Backend.(services.Syncer)
		if !ok {
			logger.Error("Backend cannot be synced into", log.FieldBackend, cfg.DataBackend)
			os.Exit(1)
		}
		src, err := google.NewFromOptions(ctx, backend.GoogleOptions(cfg))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client for sync", "error", err)
			os.Exit(1)
		}
		processor = services.NewSyncProcessor(target, src, services.SyncProcessorConfig{
			PollInterval: cfg.SyncInterval,
			MaxRetries:   3,
		}, logger, func(int) { srv.InvalidateReports() })
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if processor != nil {
			if err := processor.Stop(shutdownCtx); err != nil {
				logger.Error("Sync processor shutdown error", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if processor != nil {
		if err := processor.Start(runCtx); err != nil {
			logger.Error("Failed to start sync processor", "error", err)
			os.Exit(1)
		}
	}

	srv.Start()
	logger.Info("Starting settle server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
