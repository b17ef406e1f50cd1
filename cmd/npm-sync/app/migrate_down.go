package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/npm-sync/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Revert database migrations. By default every migration is reverted;
use --num-steps to roll back a fixed number of versions.
WARNING: This may result in data loss.`,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	db, connString, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}

	target := "all migrations"
	if numSteps > 0 {
		target = fmt.Sprintf("%d migration(s)", numSteps)
	}
	ok, err := confirm(cmd, fmt.Sprintf("WARNING: About to revert %s on database: %s", target, describeDatabase(db)))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Reverting database migrations...", "steps", numSteps)
	if err := database.MigrateDown(connString, int(numSteps)); err != nil { //nolint:gosec // bounded by the schema size
		return fmt.Errorf("failed to revert migrations: %w", err)
	}

	logVersion(connString)
	return nil
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, connString, err := loadDatabaseConfig(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := database.GetVersion(connString)
			if err != nil {
				return fmt.Errorf("failed to get migration version: %w", err)
			}
			return writeJSON(cmd, map[string]any{"version": version, "dirty": dirty})
		},
	}
}
