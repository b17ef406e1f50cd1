package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

// Enumerator lists every package name in the registry
type Enumerator interface {
	EnumeratePackages(ctx context.Context, pageSize int) ([]string, error)
}

// Config holds the orchestrator settings
type Config struct {
	BulkQueue    string
	TickQueue    string
	BatchSize    int
	ChunkSize    int
	TickInterval time.Duration
	PageSize     int
}

// Orchestrator is the backfill state machine. Every verb reads and writes
// the persisted state, so any process sharing the key-value store and the
// queue can drive the same backfill.
type Orchestrator struct {
	kv         kvstore.Store
	enumerator Enumerator
	enqueuer   queue.Enqueuer
	cfg        Config
	clock      clock.Clock
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	// serialises verbs inside one process; across processes the tick
	// queue runs with concurrency 1
	mu sync.Mutex
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

// WithMetrics records the backfill offset
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator
func New(kv kvstore.Store, enumerator Enumerator, enqueuer queue.Enqueuer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		kv:         kv,
		enumerator: enumerator,
		enqueuer:   enqueuer,
		cfg:        cfg,
		clock:      clock.WallClock,
		logger:     slog.With("component", "backfill"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TickHandler returns the queue handler of backfill ticks
func (o *Orchestrator) TickHandler() queue.Handler {
	return jobs.Handle(o.Tick)
}

// Status returns the current state with counters and rate filled in
func (o *Orchestrator) Status(ctx context.Context) (State, error) {
	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	if s.Status == StatusRunning {
		s.Rate = s.computeRate(o.clock.Now())
	}
	return s, nil
}

// Start enumerates the registry, persists the candidate list and begins a
// new run. Enumeration failure leaves the backfill in the error status.
func (o *Orchestrator) Start(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	if !s.canStart() {
		return s, &TransitionError{Verb: VerbStart, From: s.Status}
	}

	s, err = o.beginRun(ctx, s)
	if err != nil {
		return State{}, err
	}
	s, err = o.initialize(ctx, s)
	if err != nil {
		return s, err
	}
	if s.Status == StatusRunning {
		if s, err = o.scheduleOrPause(ctx, s, false); err != nil {
			return s, err
		}
	}
	o.logger.Info("Backfill started", "phase", s.Phase, "total", s.Total)
	return s, nil
}

// Request begins a new run without enumerating. The first tick performs the
// enumeration, which keeps the caller from waiting on a full registry listing.
func (o *Orchestrator) Request(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	if !s.canStart() {
		return s, &TransitionError{Verb: VerbStart, From: s.Status}
	}

	s, err = o.beginRun(ctx, s)
	if err != nil {
		return State{}, err
	}
	if s, err = o.scheduleOrPause(ctx, s, false); err != nil {
		return s, err
	}
	o.logger.Info("Backfill requested", "phase", s.Phase)
	return s, nil
}

// Pause stops scheduling ticks. Only valid while running.
func (o *Orchestrator) Pause(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	if s.Status != StatusRunning {
		return s, &TransitionError{Verb: VerbPause, From: s.Status}
	}
	s.Status = StatusPaused
	if err := o.save(ctx, s); err != nil {
		return State{}, err
	}
	o.logger.Info("Backfill paused", "offset", s.Offset, "total", s.Total)
	return s, nil
}

// Resume continues a paused run with an immediate tick. Only valid while paused.
func (o *Orchestrator) Resume(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	if s.Status != StatusPaused {
		return s, &TransitionError{Verb: VerbResume, From: s.Status}
	}
	s.Status = StatusRunning
	if err := o.save(ctx, s); err != nil {
		return State{}, err
	}
	if s, err = o.scheduleOrPause(ctx, s, true); err != nil {
		return s, err
	}
	o.logger.Info("Backfill resumed", "offset", s.Offset, "total", s.Total)
	return s, nil
}

// Reset clears the candidate list and counters and returns to idle from any
// status. The phase number is kept so the next run gets a fresh one.
func (o *Orchestrator) Reset(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return State{}, err
	}
	for _, key := range []string{PackagesKey, SyncedKey, FailedKey} {
		if err := o.kv.Delete(ctx, key); err != nil {
			return State{}, fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	s = State{Status: StatusIdle, Phase: s.Phase}
	if err := o.save(ctx, s); err != nil {
		return State{}, err
	}
	o.logger.Info("Backfill reset")
	return s, nil
}

// Recover makes sure a running backfill has a tick scheduled. It is called
// on startup so a run survives a restart with a non-durable queue.
func (o *Orchestrator) Recover(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return err
	}
	if s.Status == StatusRunning {
		o.logger.Info("Resuming backfill after restart", "offset", s.Offset, "total", s.Total)
		return o.schedule(ctx, s, 0, false)
	}
	return nil
}

// Tick enqueues the next batch of bulk sync jobs and schedules the next
// tick. Ticks for another phase or offset are stale and only make sure the
// current tick is scheduled. A scheduling failure is returned after the
// state is saved, so the redelivered tick is stale and schedules again.
func (o *Orchestrator) Tick(ctx context.Context, job jobs.BackfillTickJob) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.load(ctx)
	if err != nil {
		return err
	}
	if s.Status != StatusRunning {
		o.logger.Debug("Backfill not running, ignoring tick", "status", s.Status)
		return nil
	}
	if job.Phase != s.Phase || job.Offset != s.Offset {
		o.logger.Debug("Ignoring stale tick",
			"tick_phase", job.Phase, "tick_offset", job.Offset,
			"phase", s.Phase, "offset", s.Offset)
		return o.schedule(ctx, s, o.cfg.TickInterval, false)
	}

	if s.Total == 0 {
		s, err = o.initialize(ctx, s)
		if s.Status == StatusError {
			// persisted; an operator has to reset
			return nil
		}
		if err != nil {
			return err
		}
		if s.Status != StatusRunning {
			return nil
		}
	}

	var names []string
	if err := kvstore.GetJSON(ctx, o.kv, PackagesKey, &names); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return o.fail(ctx, s, errors.New("candidate package list is missing"))
		}
		return err
	}

	end := min(s.Offset+o.cfg.BatchSize, s.Total, len(names))
	batch := names[min(s.Offset, end):end]
	if err := o.enqueueBatch(ctx, s, batch); err != nil {
		return err
	}

	s.Offset += len(batch)
	if len(batch) == 0 || s.Offset >= s.Total {
		s.Status = StatusCompleted
	}
	s.Rate = s.computeRate(o.clock.Now())

	// another process may have paused or reset the run while the batch was
	// being enqueued
	current, err := o.loadState(ctx)
	if err != nil {
		return err
	}
	if current.Phase != s.Phase || (current.Status != StatusRunning && current.Status != StatusPaused) {
		o.logger.Info("Backfill changed during tick, dropping progress",
			"phase", current.Phase, "status", current.Status)
		return nil
	}
	if current.Status == StatusPaused && s.Status == StatusRunning {
		s.Status = StatusPaused
	}

	if err := o.save(ctx, s); err != nil {
		return err
	}
	o.metrics.RecordBackfillOffset(ctx, s.Offset, s.Total)

	switch s.Status {
	case StatusCompleted:
		o.logger.Info("Backfill completed", "phase", s.Phase, "total", s.Total)
		return nil
	case StatusPaused:
		o.logger.Info("Backfill paused during tick", "offset", s.Offset, "total", s.Total)
		return nil
	}
	o.logger.Info("Backfill batch enqueued", "offset", s.Offset, "total", s.Total, "batch", len(batch))
	return o.schedule(ctx, s, o.cfg.TickInterval, false)
}

// RecordProgress adds bulk sync results to the counters of the current run.
// Results reported for another phase are dropped.
func (o *Orchestrator) RecordProgress(ctx context.Context, phase *int, synced, failed int) error {
	if phase == nil {
		return nil
	}
	s, err := o.loadState(ctx)
	if err != nil {
		return err
	}
	if *phase != s.Phase {
		return nil
	}
	if synced > 0 {
		if _, err := o.kv.Incr(ctx, SyncedKey, int64(synced)); err != nil {
			return err
		}
	}
	if failed > 0 {
		if _, err := o.kv.Incr(ctx, FailedKey, int64(failed)); err != nil {
			return err
		}
	}
	return nil
}

// beginRun persists a fresh running state for the next phase
func (o *Orchestrator) beginRun(ctx context.Context, prev State) (State, error) {
	for _, key := range []string{PackagesKey, SyncedKey, FailedKey} {
		if err := o.kv.Delete(ctx, key); err != nil {
			return State{}, fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	now := o.clock.Now()
	s := State{
		Status:    StatusRunning,
		Phase:     prev.Phase + 1,
		StartedAt: &now,
	}
	if err := o.save(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// initialize enumerates the registry and stores the candidate list. An
// enumeration failure is persisted as the error status.
func (o *Orchestrator) initialize(ctx context.Context, s State) (State, error) {
	names, err := o.enumerator.EnumeratePackages(ctx, o.cfg.PageSize)
	if err != nil {
		err = fmt.Errorf("failed to enumerate packages: %w", err)
		if saveErr := o.fail(ctx, s, err); saveErr != nil {
			return State{}, saveErr
		}
		s.Status = StatusError
		s.Error = err.Error()
		return s, err
	}
	if err := kvstore.SetJSON(ctx, o.kv, PackagesKey, names); err != nil {
		return State{}, fmt.Errorf("failed to store candidate list: %w", err)
	}

	s.Total = len(names)
	if s.Total == 0 {
		s.Status = StatusCompleted
	}
	if err := o.save(ctx, s); err != nil {
		return State{}, err
	}
	o.logger.Info("Backfill candidates enumerated", "total", s.Total)
	return s, nil
}

func (o *Orchestrator) enqueueBatch(ctx context.Context, s State, batch []string) error {
	phase := s.Phase
	for i := 0; i < len(batch); i += o.cfg.ChunkSize {
		chunk := batch[i:min(i+o.cfg.ChunkSize, len(batch))]
		job := jobs.BulkSyncJob{
			PackageNames: chunk,
			Phase:        &phase,
			Offset:       s.Offset + i,
		}
		if _, err := jobs.Enqueue(ctx, o.enqueuer, o.cfg.BulkQueue, job, queue.EnqueueOptions{}); err != nil {
			return fmt.Errorf("failed to enqueue bulk sync at offset %d: %w", job.Offset, err)
		}
	}
	return nil
}

// schedule enqueues the tick for the current offset
func (o *Orchestrator) schedule(ctx context.Context, s State, delay time.Duration, resume bool) error {
	job := jobs.BackfillTickJob{Offset: s.Offset, Phase: s.Phase, Resume: resume}
	res, err := jobs.Enqueue(ctx, o.enqueuer, o.cfg.TickQueue, job, queue.EnqueueOptions{Delay: delay})
	if err != nil {
		o.logger.Error("Failed to schedule backfill tick", "offset", s.Offset, "error", err)
		return fmt.Errorf("failed to schedule backfill tick: %w", err)
	}
	o.logger.Debug("Backfill tick scheduled", "offset", s.Offset, "delay", delay, "result", res)
	return nil
}

// scheduleOrPause schedules an immediate tick for a verb. When that fails
// the run is parked as paused, so a later resume can schedule it again.
func (o *Orchestrator) scheduleOrPause(ctx context.Context, s State, resume bool) (State, error) {
	err := o.schedule(ctx, s, 0, resume)
	if err == nil {
		return s, nil
	}
	s.Status = StatusPaused
	if saveErr := o.save(ctx, s); saveErr != nil {
		return State{}, errors.Join(err, saveErr)
	}
	return s, err
}

func (o *Orchestrator) fail(ctx context.Context, s State, cause error) error {
	o.logger.Error("Backfill failed", "phase", s.Phase, "error", cause)
	s.Status = StatusError
	s.Error = cause.Error()
	return o.save(ctx, s)
}

// load reads the state with the counters merged in
func (o *Orchestrator) load(ctx context.Context) (State, error) {
	s, err := o.loadState(ctx)
	if err != nil {
		return State{}, err
	}
	synced, err := kvstore.GetInt(ctx, o.kv, SyncedKey)
	if err != nil {
		return State{}, err
	}
	failed, err := kvstore.GetInt(ctx, o.kv, FailedKey)
	if err != nil {
		return State{}, err
	}
	s.Synced, s.Failed = int(synced), int(failed)
	return s, nil
}

func (o *Orchestrator) loadState(ctx context.Context) (State, error) {
	var s State
	err := kvstore.GetJSON(ctx, o.kv, StateKey, &s)
	if errors.Is(err, kvstore.ErrNotFound) {
		return State{Status: StatusIdle}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load backfill state: %w", err)
	}
	return s, nil
}

func (o *Orchestrator) save(ctx context.Context, s State) error {
	if err := kvstore.SetJSON(ctx, o.kv, StateKey, s); err != nil {
		return fmt.Errorf("failed to save backfill state: %w", err)
	}
	return nil
}
