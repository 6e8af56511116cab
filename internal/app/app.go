// Package app opens the infrastructure shared by the portal binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicportal/internal/cache"
	"civicportal/internal/config"
	"civicportal/internal/database"
	"civicportal/internal/kv"
	"civicportal/internal/notify"
	"civicportal/internal/service"
	"civicportal/internal/storage"
)

type Runtime struct {
	Store    kv.Store
	Redis    *redis.Client
	Postgres *pgxpool.Pool
	Services *service.Services
	log      zerolog.Logger
}

// Open connects the configured store, the notification stream and the
// dossier archive and builds the services over them. name identifies the
// process to Redis.
func Open(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger, name string) (*Runtime, error) {
	rt := &Runtime{log: log}

	if cfg.Store.Driver == config.StoreDriverRedis || cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis, name)
		if err != nil {
			return nil, err
		}
		rt.Redis = client
	}

	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		rt.Store = kv.NewRedisStore(rt.Redis, cfg.Store.Namespace, cfg.Store.MaxRetries)
	case config.StoreDriverPostgres:
		if cfg.Postgres.Migrate {
			if err := database.Migrate(cfg.Postgres.DSN, log); err != nil {
				rt.Close()
				return nil, err
			}
		}
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.Postgres = pool
		rt.Store = kv.NewPostgresStore(pool, cfg.Store.Namespace)
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var notifier notify.Notifier
	if rt.Redis != nil {
		notifier = notify.NewStreamPublisher(rt.Redis, cfg.Redis.Stream, log)
	} else {
		log.Warn().Msg("redis not configured, emails are disabled")
	}

	var archive service.Archiver
	if cfg.Storage.Endpoint != "" {
		dossiers, err := storage.NewDossierArchive(cfg.Storage)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := dossiers.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Msg("ensure dossier bucket failed")
		}
		archive = dossiers
	}

	rt.Services = service.New(cfg, rt.Store, notifier, archive, log)
	return rt, nil
}

func (rt *Runtime) Close() {
	if rt.Postgres != nil {
		rt.Postgres.Close()
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			rt.log.Error().Err(err).Msg("redis close error")
		}
	}
}
