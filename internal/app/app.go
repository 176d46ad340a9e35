// Package app wires the store, presence, event bus and services from a
// Config. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"bibliotech/internal/api"
	"bibliotech/internal/auth"
	"bibliotech/internal/config"
	"bibliotech/internal/database"
	"bibliotech/internal/domain"
	"bibliotech/internal/events"
	"bibliotech/internal/logging"
	"bibliotech/internal/repository"
	"bibliotech/internal/service"
	"bibliotech/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config   *config.Config
	DB       *database.DB
	Redis    *redis.Client
	Bus      *events.EventBus
	Presence domain.PresenceRepository
	Services api.Services

	logger *zerolog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}

	a := &App{Config: cfg, DB: db, logger: logger}
	a.Redis = initRedis(ctx, cfg.Redis, logger)
	a.Presence = newPresence(a.Redis, logging.Component(logger, "presence"))

	a.Bus = events.NewEventBus()
	events.RegisterObservers(a.Bus, logging.Component(logger, "events"))

	var google service.GoogleAuthenticator
	if cfg.Auth.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Auth.Google)
	}

	window := cfg.Reservations.PickupWindow
	period := cfg.Loans.Period
	svcLogger := logging.Component(logger, "service")

	reservations := service.NewReservationService(db, a.Bus, window, period, svcLogger)
	a.Services = api.Services{
		Auth:         service.NewAuthService(db, db, a.Presence, auth.NewTokenManager(cfg.Auth), google, cfg, svcLogger),
		Reservations: reservations,
		Loans:        service.NewLoanService(db, a.Bus, period, window, svcLogger),
		Reviews:      service.NewReviewService(db, a.Bus, svcLogger),
		Catalog:      service.NewCatalogService(db, reservations, svcLogger),
		Reports:      service.NewReportService(db, reservations, a.Presence, svcLogger),
	}
	return a, nil
}

// initRedis returns nil when Redis is not configured or unreachable.
func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}

func newPresence(client *redis.Client, logger *zerolog.Logger) domain.PresenceRepository {
	memory := repository.NewMemoryPresenceRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverPresenceRepository(repository.NewRedisPresenceRepository(client), memory, logger)
}

// Worker builds the reservation/loan lifecycle worker.
func (a *App) Worker() *worker.LifecycleWorker {
	return worker.NewLifecycleWorker(
		a.Services.Reservations,
		a.Services.Loans,
		a.Config.Reservations.SweepInterval,
		worker.DefaultRetryPolicy,
		logging.Component(a.logger, "worker"),
	)
}

func (a *App) Backup() *database.BackupService {
	return database.NewBackupService(a.DB, a.Config.Database.Path, a.Config.Backup, logging.Component(a.logger, "backup"))
}

// SeedCatalog loads the seed file at path into the catalog.
func (a *App) SeedCatalog(ctx context.Context, path string) (*service.SeedResult, error) {
	seed, err := config.LoadCatalogSeed(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog seed: %w", err)
	}
	return a.Services.Catalog.Seed(ctx, seed)
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, repository.Close(a.Redis))
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
