package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	repo "github.com/rugflowhq/rugflow/internal/repository"
)

// ConnectDB establishes a connection to the database and returns the
// Ent client and connection pool.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*ent.Client, *pgxpool.Pool, error) {
	return repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
}

// PingDB pings the database to ensure it's responsive.
func PingDB(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	err := repo.HealthCheck(ctx, pool, timeout, logger)
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully.
func CloseDB(entc *ent.Client, pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	repo.Close(entc, pool, logger)
	logger.Info("database connections closed")
}
