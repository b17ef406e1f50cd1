package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/registry"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

// CursorKey is the kv key holding the last fully enqueued sequence
const CursorKey = "changes:cursor"

// Poller is the single sequential loop following the change log. Running
// two pollers against one cursor can redeliver changes; sync jobs are
// deduplicated and idempotent, so this costs work, not correctness.
type Poller struct {
	registry  registry.Client
	kv        kvstore.Store
	enqueuer  queue.Enqueuer
	queueName string
	policy    Policy
	clock     clock.Clock
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Option configures a Poller
type Option func(*Poller)

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(p *Poller) {
		p.clock = clk
	}
}

// WithMetrics records enqueued events
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// NewPoller creates a poller that enqueues sync jobs on queueName
func NewPoller(
	reg registry.Client, kv kvstore.Store, enqueuer queue.Enqueuer, queueName string, policy Policy, opts ...Option,
) *Poller {
	p := &Poller{
		registry:  reg,
		kv:        kv,
		enqueuer:  enqueuer,
		queueName: queueName,
		policy:    policy,
		clock:     clock.WallClock,
		logger:    slog.With("component", "change-poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cursor returns the persisted cursor. Without one the poller starts from
// the current head of the change log; history is left to the backfill.
func (p *Poller) Cursor(ctx context.Context) (string, error) {
	var cursor string
	err := kvstore.GetJSON(ctx, p.kv, CursorKey, &cursor)
	if err == nil {
		return cursor, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return "", fmt.Errorf("failed to load cursor: %w", err)
	}

	head, err := p.registry.CurrentSequence(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch change log head: %w", err)
	}
	p.logger.Info("No stored cursor, starting from change log head", "cursor", head)
	return head, nil
}

// Run polls until ctx is cancelled. A batch in progress when cancellation
// arrives is finished and its cursor saved before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	var cursor string
	for {
		var err error
		cursor, err = p.Cursor(ctx)
		if err == nil {
			break
		}
		p.logger.Error("Failed to resolve starting cursor", "error", err)
		if !p.wait(ctx, p.policy.AfterError(State{}).Delay) {
			return nil
		}
	}

	state := p.policy.Start(cursor)
	p.logger.Info("Starting change poller", "cursor", cursor, "limit", p.policy.Limit)

	for {
		if ctx.Err() != nil {
			p.logger.Info("Change poller stopped", "cursor", state.Cursor)
			return nil
		}
		state = p.Step(context.WithoutCancel(ctx), state)
		if state.Delay > 0 && !p.wait(ctx, state.Delay) {
			p.logger.Info("Change poller stopped", "cursor", state.Cursor)
			return nil
		}
	}
}

// Step performs one poll from s.Cursor, enqueues the batch in feed order,
// persists the new cursor and returns the next state
func (p *Poller) Step(ctx context.Context, s State) State {
	page, err := p.registry.Changes(ctx, s.Cursor, p.policy.Limit)
	if err != nil {
		next := p.policy.AfterError(s)
		p.logger.Warn("Failed to poll change log", "cursor", s.Cursor, "error", err, "retry_in", next.Delay)
		return next
	}

	enqueued, duplicates := 0, 0
	for _, ch := range page.Changes {
		job := jobs.SyncJob{PackageName: ch.Name, SequenceToken: ch.Seq, Deleted: ch.Deleted}
		res, err := jobs.Enqueue(ctx, p.enqueuer, p.queueName, job, queue.EnqueueOptions{})
		if err != nil {
			// the cursor stays put so the whole page is retried; already
			// enqueued changes dedup on the retry
			next := p.policy.AfterError(s)
			p.logger.Error("Failed to enqueue sync job", "package", ch.Name, "seq", ch.Seq, "error", err)
			return next
		}
		if res == queue.Duplicate {
			duplicates++
			continue
		}
		enqueued++
	}
	p.metrics.RecordChangeEvents(ctx, enqueued)

	next := p.policy.AfterPoll(s, page.Fetched, page.LastSeq)
	if next.Cursor != s.Cursor {
		if err := p.saveCursor(ctx, next.Cursor); err != nil {
			p.logger.Error("Failed to persist cursor", "cursor", next.Cursor, "error", err)
		}
	}
	if page.Fetched > 0 {
		p.logger.Debug("Polled change log",
			"fetched", page.Fetched,
			"enqueued", enqueued,
			"duplicates", duplicates,
			"cursor", next.Cursor,
		)
	}
	return next
}

func (p *Poller) saveCursor(ctx context.Context, cursor string) error {
	return kvstore.SetJSON(ctx, p.kv, CursorKey, cursor)
}

func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}
