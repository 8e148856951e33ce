package main

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Service: cfg.ServiceName + "-dlqmanager", Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := app.SignalContext()
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)
	metricsDone := app.ServeMetrics(ctx, cfg.MetricsAddress, logger)

	logger.Info().
		Dur("interval", cfg.DLQPollInterval).
		Int("max_retries", cfg.DLQMaxRetries).
		Msg("dlq manager started")

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-ticker.C:
			requeued, err := manager.RunOnce(ctx, cfg.DLQBatchSize)
			if err != nil {
				logger.Error().Err(err).Msg("dlq pass failed")
			}
			if requeued > 0 {
				logger.Info().Int("requeued", requeued).Msg("dlq entries requeued")
			}
		}
	}

	logger.Info().Msg("dlq manager shutting down")
	<-metricsDone
}
