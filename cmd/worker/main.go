package main

import (
	"example.com/healthsync/internal/app"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(logging.Config{Service: cfg.ServiceName + "-worker", Level: cfg.LogLevel, Pretty: cfg.LogPretty})
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

	sched := scheduler.New(logger)
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.NightlySchedule, scheduler.NewNightlyJob(backend.Store, services.Loads, services.Readiness, logger)},
		{cfg.ScanSchedule, scheduler.NewScanJob(backend.Store, services.Syncer, cfg.ScanDays, logger)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.spec, j.job); err != nil {
			logger.Fatal().Err(err).Str("schedule", j.spec).Msg("invalid job schedule")
		}
	}

	metricsDone := app.ServeMetrics(ctx, cfg.MetricsAddress, logger)
	sched.Start(ctx)

	<-ctx.Done()
	logger.Info().Msg("worker shutdown requested")
	sched.Stop()
	<-metricsDone
}
