package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"initiative_syncer/internal/config"
	"initiative_syncer/internal/publisher"
	"initiative_syncer/internal/service"
	"initiative_syncer/internal/source/oecd"
	"initiative_syncer/internal/storage/memory"
	"initiative_syncer/internal/storage/postgres"
	"initiative_syncer/internal/storage/redislock"
)

// app holds the wired sync service and the connections it owns.
type app struct {
	service *service.SyncService
	meta    service.SyncMetaStore

	db        *sqlx.DB
	redis     *redis.Client
	publisher *publisher.RabbitMQ
	logger    *slog.Logger
}

type wireOptions struct {
	// dryRun binds in-memory stores; nothing is written to the database.
	dryRun  bool
	publish bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts wireOptions) (*app, error) {
	a := &app{logger: logger}

	source := oecd.New(oecd.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		UserAgent:         cfg.API.UserAgent,
		MaxAttempts:       cfg.API.Retry.MaxAttempts,
		InitialBackoff:    cfg.API.Retry.InitialBackoff,
		MaxBackoff:        cfg.API.Retry.MaxBackoff,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		BreakerFailures:   cfg.API.Breaker.Failures,
		BreakerTimeout:    cfg.API.Breaker.Timeout,
	}, logger)

	if opts.dryRun {
		meta := memory.NewSyncMetaStore(cfg.Lock.StaleAfter)
		a.meta = meta
		a.service = service.NewSyncService(
			source,
			memory.NewInitiativeStore(),
			meta,
			meta,
			memory.TransactionManager{},
			logger,
			cfg.Sync,
			service.WithLookupStore(memory.NewLookupStore()),
		)
		logger.Info("dry run: using in-memory stores")
		return a, nil
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL(), logger); err != nil {
			return nil, err
		}
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	a.db = db
	logger.Info("connected to database")

	meta := postgres.NewSyncMetaStore(db, cfg.Lock.StaleAfter)
	a.meta = meta

	locker, err := a.newLocker(ctx, cfg, meta)
	if err != nil {
		a.Close()
		return nil, err
	}

	serviceOpts := []service.Option{service.WithLookupStore(postgres.NewLookupStore(db))}

	if opts.publish && cfg.RabbitMQ.Enabled {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		serviceOpts = append(serviceOpts, service.WithPublisher(pub))
	}

	a.service = service.NewSyncService(
		source,
		postgres.NewInitiativeStore(db),
		meta,
		locker,
		postgres.NewTransactionManager(db),
		logger,
		cfg.Sync,
		serviceOpts...,
	)
	return a, nil
}

func (a *app) newLocker(ctx context.Context, cfg *config.Config, meta *postgres.SyncMetaStore) (service.Locker, error) {
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		client, err := redislock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.logger.Info("using redis sync lock", "key", cfg.Lock.RedisKey)
		return redislock.New(client, cfg.Lock.RedisKey, cfg.Lock.StaleAfter), nil
	case config.LockBackendMemory:
		a.logger.Warn("using process-local sync lock")
		return memory.NewSyncMetaStore(cfg.Lock.StaleAfter), nil
	case config.LockBackendPostgres:
		return meta, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close rabbitmq", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}
