package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/database"
	"github.com/digkill/botforge/internal/llm"
	"github.com/digkill/botforge/internal/lock"
	"github.com/digkill/botforge/internal/metrics"
	"github.com/digkill/botforge/internal/packager"
	"github.com/digkill/botforge/internal/repository"
	"github.com/digkill/botforge/internal/service"
	"github.com/digkill/botforge/internal/storage"
	"github.com/digkill/botforge/pkg/logger"
)

// app holds the wired services shared by every sub-command.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB

	closers []func() error

	users      *service.UserService
	ledger     *service.LedgerService
	generation *service.GenerationService
	packages   *service.PackageService
	admin      *service.AdminService
}

func bootstrap(ctx context.Context, requireFrontend bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(requireFrontend); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &app{cfg: cfg, log: logger.New(cfg.LogFormat, cfg.LogLevel)}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := database.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, fmt.Errorf("database migrate: %w", err)
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var uploader service.Uploader
	if cfg.S3Enabled() {
		u, err := storage.NewUploader(storage.FromAppConfig(cfg))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("storage uploader: %w", err)
		}
		uploader = u
	}

	userRepo := repository.NewUserRepository(db)
	botRepo := repository.NewBotRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	client := llm.NewOpenAIClient(cfg, a.log, metrics.ObserveProvider)

	a.users = service.NewUserService(cfg, a.log, userRepo, botRepo)
	a.ledger = service.NewLedgerService(cfg, a.log, userRepo, locker)
	a.generation = service.NewGenerationService(cfg, a.log, userRepo, generationRepo, client, locker)
	a.packages = service.NewPackageService(a.log, botRepo, packager.NewWriter(cfg.GeneratedBotsDir), uploader)
	a.admin = service.NewAdminService(cfg, a.log, userRepo, botRepo, generationRepo, adminRepo, statsRepo, locker, a.ledger, a.generation)
	return a, nil
}

func (a *app) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.LockBackend != config.LockBackendRedis {
		return lock.NewLocal(), nil
	}
	r, err := lock.NewRedisFromURL(ctx, a.cfg.RedisURL, a.log, a.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("redis locker: %w", err)
	}
	a.closers = append(a.closers, r.Close)
	a.log.Info("using redis locker", "ttl", a.cfg.LockTTL)
	return r, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close resource", "err", err)
		}
	}
	a.closers = nil
}
