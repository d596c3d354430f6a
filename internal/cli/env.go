// Package cli holds the civicactl subcommands.
package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/pkg/config"
	"github.com/noah-isme/civica-api/pkg/database"
	"github.com/noah-isme/civica-api/pkg/logger"
)

// env is the shared runtime every subcommand opens from configuration.
type env struct {
	cfg    *config.Config
	db     *sqlx.DB
	logger *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	return &env{cfg: cfg, db: db, logger: logr}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
	_ = e.logger.Sync()
}
