package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/consumer"
	"example.com/healthsync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Service: cfg.ServiceName + "-consumer", Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("consumer requires the postgres store")
	}

	ctx, stop := app.SignalContext()
	defer stop()

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	handler := consumer.NewSyncHandler(app.NewServices(backend.Store, cfg, logger).Syncer, logger)
	metricsDone := app.ServeMetrics(ctx, cfg.MetricsAddress, logger)

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, cfg, topic, handler, logger)
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("consumer shutdown requested")
	wg.Wait()
	<-metricsDone
}

// consume runs one group member for topic until ctx is cancelled.
func consume(ctx context.Context, cfg config.Config, topic string, handler consumer.Handler, logger zerolog.Logger) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroup,
		Topic:           topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	log := logger.With().Str("topic", topic).Str("group", cfg.ConsumerGroup).Logger()
	proc := consumer.NewProcessor(reader, handler,
		consumer.WithLogger(log),
		consumer.WithRetry(cfg.ConsumerAttempts, cfg.ConsumerBackoff),
	)

	log.Info().Msg("consumer started")
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer stopped with error")
	}
}
