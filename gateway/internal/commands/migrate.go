package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inventra-labs/inventra/gateway/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Identity store schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *database.Migrator) error {
			return printVersion(cmd, m)
		})
	},
}

func withMigrator(fn func(*database.Migrator) error) error {
	if err := requirePostgres(); err != nil {
		return err
	}
	m, err := database.NewMigrator(cfg.Database.Migrations, cfg.Database.Postgres.ConnString())
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *database.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		printWarn(cmd.OutOrStdout(), "Schema version %d is dirty; fix it by hand before migrating again", version)
		return nil
	}
	printSuccess(cmd.OutOrStdout(), "Schema version %d", version)
	return nil
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
