package app

import (
	"context"

	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/changes"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/sync"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Queue is the job queue shared by producers and consumers
	Queue queue.Store

	// Processor syncs packages into the search index
	Processor *sync.Processor

	// Backfill drives full registry backfills
	Backfill *backfill.Orchestrator

	// Poller follows the change feed; nil when polling is disabled
	Poller *changes.Poller

	// Consumers run one worker pool per queue
	Consumers []*queue.Consumer
}

// worker is a long running background task
type worker struct {
	name string
	run  func(ctx context.Context) error
}

// workers lists the background tasks in start order
func (c *AppComponents) workers() []worker {
	var ws []worker
	for _, consumer := range c.Consumers {
		ws = append(ws, worker{
			name: "consumer:" + consumer.Queue(),
			run: func(ctx context.Context) error {
				consumer.Run(ctx)
				return nil
			},
		})
	}
	if c.Poller != nil {
		ws = append(ws, worker{name: "change-poller", run: c.Poller.Run})
	}
	return ws
}

// settingsEnqueuer applies per-queue enqueue defaults before delegating
type settingsEnqueuer struct {
	queue.Store
	maxAttempts map[string]int
}

// Enqueue implements queue.Enqueuer
func (s *settingsEnqueuer) Enqueue(
	ctx context.Context, name string, payload []byte, opts queue.EnqueueOptions,
) (queue.EnqueueResult, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = s.maxAttempts[name]
	}
	return s.Store.Enqueue(ctx, name, payload, opts)
}
