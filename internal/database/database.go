// Package database opens the activity store selected by DB_DRIVER.
package database

import (
	"fmt"

	"github.com/Wuchinator/storefront-activity/internal/config"
	"github.com/Wuchinator/storefront-activity/pkg/postgres"
	"github.com/Wuchinator/storefront-activity/pkg/sqlite"
	"go.uber.org/zap"
)

func Open(cfg *config.Config, log *zap.Logger) (*postgres.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("SQLite opened", zap.String("path", cfg.Database.SQLitePath))
		return postgres.Wrap(db, log), nil
	case "postgres":
		return postgres.New(postgres.Config{
			DSN:             cfg.Postgres.PostgresDSN(),
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
