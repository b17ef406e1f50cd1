package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/npm-sync/internal/app"
	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/config"
)

// backfillVerb is one control operation of the orchestrator
type backfillVerb func(o *backfill.Orchestrator, ctx context.Context) (backfill.State, error)

func newBackfillCmd() *cobra.Command {
	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Control the full registry backfill",
		Long: `Control the one-time sync of every package in the registry.
Each subcommand prints the resulting backfill state as JSON. Ticks enqueued
here are processed by a running 'serve' instance sharing the same storage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	backfillCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := backfillCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	backfillCmd.AddCommand(
		newBackfillVerbCmd("start", "Enumerate the registry and start a backfill run", (*backfill.Orchestrator).Start),
		newBackfillVerbCmd("pause", "Pause a running backfill", (*backfill.Orchestrator).Pause),
		newBackfillVerbCmd("resume", "Resume a paused backfill", (*backfill.Orchestrator).Resume),
		newBackfillVerbCmd("reset", "Clear backfill progress", (*backfill.Orchestrator).Reset),
		newBackfillVerbCmd("status", "Print the backfill state", (*backfill.Orchestrator).Status),
	)
	return backfillCmd
}

func newBackfillVerbCmd(use, short string, verb backfillVerb) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfillVerb(cmd, use, verb)
		},
	}
}

func runBackfillVerb(cmd *cobra.Command, name string, verb backfillVerb) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}
	if cfg.GetStorageType() == config.StorageTypeFile && name != "status" {
		slog.Warn("File storage keeps queues in memory; scheduled ticks run when the server next starts")
	}

	orchestrator, factory, err := app.NewBackfillController(ctx, cfg)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	state, err := verb(orchestrator, ctx)
	if err != nil {
		return fmt.Errorf("backfill %s failed: %w", name, err)
	}
	return writeJSON(cmd, state)
}

func loadConfigFlag(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
