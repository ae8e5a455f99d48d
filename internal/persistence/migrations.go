package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order; each statement is idempotent.
var migrations = []migration{
	{
		name: "001_console_credentials",
		sql: `
        CREATE TABLE IF NOT EXISTS console_credentials (
            id          SMALLINT PRIMARY KEY CHECK (id = 1),
            credential  TEXT NOT NULL,
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	},
}

// RunMigrations creates the single-slot credential table.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for _, m := range migrations {
		logger.Debug("applying migration", zap.String("name", m.name))
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
