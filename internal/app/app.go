// Package app wires the ingestion service from configuration. Both the HTTP
// server and the Lambda entry point start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/database"
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs/builtin"
	"github.com/akave-ai/meteringest/internal/ingest"
	"github.com/akave-ai/meteringest/internal/observability"
	"github.com/akave-ai/meteringest/internal/repository"
	"github.com/akave-ai/meteringest/internal/service"
	"github.com/akave-ai/meteringest/internal/storage"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Recorder *observability.Recorder
	Pool     *pgxpool.Pool
	Service  *service.ReportService
}

// New migrates the database, opens the pool and the optional O3 archive,
// and builds the report service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	recorder, err := observability.NewRecorder(cfg.Observability, log)
	if err != nil {
		return nil, err
	}

	if !cfg.Database.SkipMigrations {
		if err := database.Migrate(ctx, cfg.Database.DSN(), log); err != nil {
			recorder.Shutdown(shutdownTimeout)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, log, cfg.Observability.NewRelicEnabled())
	if err != nil {
		recorder.Shutdown(shutdownTimeout)
		return nil, err
	}

	archive, err := openArchive(ctx, cfg.Storage, log)
	if err != nil {
		pool.Close()
		recorder.Shutdown(shutdownTimeout)
		return nil, err
	}

	opts, err := PipelineOptions(cfg.Pipeline, log)
	if err != nil {
		pool.Close()
		recorder.Shutdown(shutdownTimeout)
		return nil, err
	}

	svc := service.NewReportService(
		builtin.Registry(),
		ingest.New(opts...),
		repository.NewReportRepository(pool),
		archive,
		recorder,
		log,
	)
	return &App{Config: cfg, Log: log, Recorder: recorder, Pool: pool, Service: svc}, nil
}

// Close releases the pool and flushes the APM agent.
func (a *App) Close() {
	a.Pool.Close()
	a.Recorder.Shutdown(shutdownTimeout)
}

// openArchive returns nil when no O3 bucket is configured. A bucket that
// cannot be created is logged, not fatal: archiving is best effort.
func openArchive(ctx context.Context, cfg *config.StorageConfig, log zerolog.Logger) (service.Archiver, error) {
	if cfg == nil {
		return nil, nil
	}
	client, err := storage.NewO3Client(cfg.O3)
	if err != nil {
		return nil, fmt.Errorf("o3 client: %w", err)
	}
	if client == nil {
		return nil, nil
	}
	if err := client.EnsureBucket(ctx); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.O3.Bucket).Msg("o3 ensure bucket failed, archiving may fail")
	}
	log.Info().Str("bucket", cfg.O3.Bucket).Msg("raw archive enabled")
	return client, nil
}

// PipelineOptions translates the pipeline section of the configuration.
func PipelineOptions(cfg config.PipelineConfig, log zerolog.Logger) ([]ingest.Option, error) {
	precision, err := ingest.ParseTimestampPrecision(cfg.TimestampPrecision)
	if err != nil {
		return nil, err
	}
	extra, err := cfg.ExtraErrorCodes()
	if err != nil {
		return nil, fmt.Errorf("pipeline error codes: %w", err)
	}
	return []ingest.Option{
		ingest.WithTimestampPrecision(precision),
		ingest.WithErrorCatalog(ingest.DefaultErrorCatalog().With(extra)),
		ingest.WithParallel(cfg.Parallel),
		ingest.WithLogger(log),
	}, nil
}
