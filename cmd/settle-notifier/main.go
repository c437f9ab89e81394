package main

import (
	"context"
	"errors"
	"os"
	"time"

	"settle/internal/amqp"
	"settle/internal/cli"
	"settle/internal/log"
	"settle/internal/report"
	"settle/internal/worker"
)

const (
	dedupeSize = 1024
	dedupeTTL  = 24 * time.Hour
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the request lines
	logger := cli.SetupLogger(cfg, os.Stderr)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", "error", envErr)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notifier")
		os.Exit(1)
	}

	logger.Info("Starting settle-notifier", "queue", cfg.AMQPQueue)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	notifier := worker.NewNotifier(os.Stdout, report.NewFormatter(cfg.CurrencySymbol), dedupeSize, dedupeTTL, logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
	})

	if err := client.ConsumePaymentRequests(ctx, notifier.HandlePaymentRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		_ = client.Close()
		os.Exit(1)
	}

	<-done
	logger.Info("Notifier stopped")
}
