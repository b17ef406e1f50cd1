package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	v1 "github.com/stacklok/npm-sync/internal/api/v1"
	"github.com/stacklok/npm-sync/internal/app"
	"github.com/stacklok/npm-sync/internal/app/storage"
	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/queue"
)

const defaultFailedLimit = 20

func newQueueCmd() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queues",
		Long: `Inspect the job queues of a database-backed deployment.
Queue names: sync, bulk-sync, backfill-tick, chat-delivery, email-delivery.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	queueCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := queueCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	statsCmd := &cobra.Command{
		Use:   "stats [queue...]",
		Short: "Print job counts per state",
		RunE:  runQueueStats,
	}

	failedCmd := &cobra.Command{
		Use:   "failed <queue>",
		Short: "List the most recent failed jobs of a queue",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueFailed,
	}
	failedCmd.Flags().IntP("limit", "l", defaultFailedLimit, "Maximum number of jobs to list")

	queueCmd.AddCommand(statsCmd, failedCmd)
	return queueCmd
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = app.QueueNames
	}
	if err := validateQueueNames(names...); err != nil {
		return err
	}

	return withQueueStore(cmd, func(ctx context.Context, store queue.Store) error {
		out := make([]v1.QueueResponse, 0, len(names))
		for _, name := range names {
			counts, err := store.Counts(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to count jobs of %s: %w", name, err)
			}
			out = append(out, v1.QueueResponse{Queue: name, Counts: counts})
		}
		return writeJSON(cmd, out)
	})
}

func runQueueFailed(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateQueueNames(name); err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive integer")
	}

	return withQueueStore(cmd, func(ctx context.Context, store queue.Store) error {
		failed, err := store.ListFailed(ctx, name, limit)
		if err != nil {
			return fmt.Errorf("failed to list failed jobs: %w", err)
		}
		out := make([]v1.FailedJob, 0, len(failed))
		for _, job := range failed {
			out = append(out, v1.NewFailedJob(job))
		}
		return writeJSON(cmd, out)
	})
}

func validateQueueNames(names ...string) error {
	for _, name := range names {
		if !slices.Contains(app.QueueNames, name) {
			return fmt.Errorf("unknown queue %q", name)
		}
	}
	return nil
}

// withQueueStore opens the configured queue store for fn. File storage keeps
// queues in the server's memory, so only database storage can be inspected.
func withQueueStore(cmd *cobra.Command, fn func(ctx context.Context, store queue.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}
	if cfg.GetStorageType() != config.StorageTypeDatabase {
		return fmt.Errorf("queue inspection requires database storage")
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	store, err := factory.CreateQueueStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create queue store: %w", err)
	}
	return fn(ctx, store)
}
