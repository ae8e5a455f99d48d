package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/config"
	"github.com/spec-kit/trader-console/internal/persistence"
)

// OpenCredentialStore builds the configured credential driver behind the memory
// fallback. A driver that cannot be opened yields a degraded, memory-only store.
// The returned func flushes any pending clear and releases driver connections.
func OpenCredentialStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FallbackCredentialRepository, func()) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Info("credential store is memory-only")
		return NewFallbackCredentialRepository(nil, logger), noop

	case config.StoreDriverRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return degradedStore(logger, cfg.Store.Driver, err), noop
		}
		store := NewFallbackCredentialRepository(NewRedisCredentialRepository(rdb.Client, cfg.Store.Key), logger)
		return store, func() {
			store.Close()
			rdb.Close()
		}

	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return degradedStore(logger, cfg.Store.Driver, err), noop
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return degradedStore(logger, cfg.Store.Driver, err), noop
			}
		}
		store := NewFallbackCredentialRepository(NewPostgresCredentialRepository(pg.PoolHandle()), logger)
		return store, func() {
			store.Close()
			pg.Close()
		}

	default:
		logger.Info("credential store is a file", zap.String("path", cfg.Store.FilePath))
		store := NewFallbackCredentialRepository(NewFileCredentialRepository(cfg.Store.FilePath, cfg.Store.Key), logger)
		return store, store.Close
	}
}

func degradedStore(logger *zap.Logger, driver string, err error) *FallbackCredentialRepository {
	logger.Warn("credential store driver unavailable; using memory",
		zap.String("driver", driver), zap.Error(err))
	return NewFallbackCredentialRepository(nil, logger)
}
