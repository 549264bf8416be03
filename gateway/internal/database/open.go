package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/config"
	"github.com/inventra-labs/inventra/gateway/internal/repository"
)

// OpenRepository returns the identity store selected by cfg.Type. For
// postgres it connects and, when migrate is true, applies pending
// migrations first.
func OpenRepository(ctx context.Context, cfg config.DatabaseConfig, migrate bool, logger *logging.Logger) (repository.Repository, error) {
	if cfg.Type != "postgres" {
		logger.Warn("Using in-memory repository (development only)")
		return repository.NewInMemoryRepository(), nil
	}

	connString := cfg.Postgres.ConnString()
	logger.Info("Connecting to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.Database),
	)

	if migrate {
		if err := MigrateUp(cfg.Migrations, connString, logger); err != nil {
			return nil, err
		}
	}

	repo, err := repository.NewPostgresRepository(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL")
	return repo, nil
}

// MigrateUp applies pending migrations and logs the resulting version.
func MigrateUp(source, connString string, logger *logging.Logger) error {
	logger.Info("Running database migrations", slog.String("source", source))
	m, err := NewMigrator(source, connString)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Warn("Could not get migration version", logging.Error(err))
		return nil
	}
	logger.Info("Database migration complete",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
