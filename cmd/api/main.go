package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"example.com/healthsync/internal/api"
	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/auth"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/outbox"
	httptransport "example.com/healthsync/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Service: cfg.ServiceName + "-api", Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := app.SignalContext()
	defer stop()

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	services := app.NewServices(backend.Store, cfg, logger)

	var dispatcher *outbox.Dispatcher
	if backend.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, outbox.WithProducerLogger(logger))
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(api.Deps{
		Records:    services.Records,
		Views:      services.Views,
		Dedupe:     services.Dedupe,
		Syncer:     services.Syncer,
		TSS:        services.TSS,
		Loads:      services.Loads,
		Readiness:  services.Readiness,
		Profiles:   services.Store,
		InlineSync: cfg.StoreDriver == config.DriverMemory,
		RecalcDays: cfg.TSSRecalcDays,
		ScanDays:   cfg.ScanDays,
		Log:        logger,
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Log:         logger,
		CORSOrigins: cfg.CORSOrigins,
		Auth:        auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipProbes),
		Mount:       handler.Routes,
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, router)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Str("store", cfg.StoreDriver).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
