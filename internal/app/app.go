// Package app wires stores and core services for the healthsync binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/healthsync/db/migrations"
	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/dedupe"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence/memory"
	"example.com/healthsync/internal/persistence/postgres"
	"example.com/healthsync/internal/pipeline"
	"example.com/healthsync/internal/reconcile"
	"example.com/healthsync/internal/training"
)

// Backend is an opened store plus the pool behind it, if any.
type Backend struct {
	Store domain.Store
	// Pool is nil for the memory driver.
	Pool *pgxpool.Pool
}

// Close releases the pool.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenBackend opens the store selected by cfg.StoreDriver and applies the
// schema when AutoMigrate is set.
func OpenBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return &Backend{Store: memory.NewStore()}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info().Msg("schema migrations applied")
	}
	return &Backend{Store: postgres.NewStore(pool), Pool: pool}, nil
}

// Services groups the core services built over one store.
type Services struct {
	Store     domain.Store
	Records   *domain.Service
	Views     *reconcile.Service
	Detector  *dedupe.Detector
	Dedupe    *dedupe.Engine
	TSS       *training.TSSService
	Loads     *training.LoadService
	Readiness *training.ReadinessService
	Syncer    *pipeline.Syncer
}

// NewServices builds every core service over store using the TSS and
// duplicate-window settings from cfg.
func NewServices(store domain.Store, cfg config.Config, log zerolog.Logger) *Services {
	resolver := reconcile.NewResolver(log)
	views := reconcile.NewService(store, store, reconcile.NewAggregator(resolver, log), log)

	detector := dedupe.NewDetector(dedupe.WithWindow(cfg.DuplicateWindow))
	engine := dedupe.NewEngine(store, store, detector, log)

	calc := training.NewCalculator(
		training.WithHeartRateDefaults(cfg.RestingHR, cfg.ThresholdHR),
		training.WithCalculatorLogger(log),
	)
	tss := training.NewTSSService(store, store, calc, log)

	return &Services{
		Store:     store,
		Records:   domain.NewService(store, store),
		Views:     views,
		Detector:  detector,
		Dedupe:    engine,
		TSS:       tss,
		Loads:     training.NewLoadService(store, store, log),
		Readiness: training.NewReadinessService(store, store, store, views, log),
		Syncer:    pipeline.NewSyncer(store, engine, tss, log),
	}
}
