package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/queue"
	regmocks "github.com/stacklok/npm-sync/internal/registry/mocks"
)

const (
	bulkQueue = "bulk-sync"
	tickQueue = "backfill-tick"
)

var epoch = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

type staticEnumerator struct {
	names []string
	calls int
}

func (e *staticEnumerator) EnumeratePackages(context.Context, int) ([]string, error) {
	e.calls++
	return e.names, nil
}

func packageNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("pkg-%06d", i)
	}
	return names
}

// hookedEnqueuer runs a hook before each enqueue and fails when the hook
// returns an error
type hookedEnqueuer struct {
	next queue.Enqueuer
	hook func(queueName string) error
}

func (e *hookedEnqueuer) Enqueue(ctx context.Context, queueName string, payload []byte, opts queue.EnqueueOptions) (queue.EnqueueResult, error) {
	if err := e.hook(queueName); err != nil {
		return queue.Accepted, err
	}
	return e.next.Enqueue(ctx, queueName, payload, opts)
}

// failTicks fails the next n enqueues to the tick queue
func failTicks(next queue.Enqueuer, n int) *hookedEnqueuer {
	return &hookedEnqueuer{next: next, hook: func(queueName string) error {
		if queueName == tickQueue && n > 0 {
			n--
			return errors.New("queue unavailable")
		}
		return nil
	}}
}

type harness struct {
	kv    *kvstore.MemoryStore
	queue *queue.MemoryStore
	clock *testclock.Clock
	enum  *staticEnumerator
	orch  *Orchestrator
}

func newHarness(t *testing.T, names []string) *harness {
	t.Helper()
	h := &harness{
		kv:    kvstore.NewMemoryStore(),
		clock: testclock.NewClock(epoch),
		enum:  &staticEnumerator{names: names},
	}
	h.queue = queue.NewMemoryStore(h.clock)
	h.orch = h.newOrchestrator()
	return h
}

// newOrchestrator builds a fresh orchestrator on the same shared stores,
// as a restarted process would
func (h *harness) newOrchestrator() *Orchestrator {
	return h.newOrchestratorWith(h.queue)
}

func (h *harness) newOrchestratorWith(enq queue.Enqueuer) *Orchestrator {
	return New(h.kv, h.enum, enq, Config{
		BulkQueue:    bulkQueue,
		TickQueue:    tickQueue,
		BatchSize:    500,
		ChunkSize:    50,
		TickInterval: 5 * time.Second,
		PageSize:     10000,
	}, WithClock(h.clock))
}

func (h *harness) counts(t *testing.T, name string) queue.Counts {
	t.Helper()
	c, err := h.queue.Counts(context.Background(), name)
	require.NoError(t, err)
	return c
}

// nextTick advances past the tick delay and claims the next tick job
func (h *harness) nextTick(t *testing.T) (*queue.Job, jobs.BackfillTickJob) {
	t.Helper()
	h.clock.Advance(5 * time.Second)
	job, err := h.queue.Claim(context.Background(), tickQueue, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job, "expected a scheduled tick")
	p, err := jobs.Decode(job.Payload)
	require.NoError(t, err)
	return job, p.(jobs.BackfillTickJob)
}

func (h *harness) runTick(t *testing.T) State {
	t.Helper()
	ctx := context.Background()
	job, tick := h.nextTick(t)
	require.NoError(t, h.orch.Tick(ctx, tick))
	require.NoError(t, h.queue.Complete(ctx, job))
	s, err := h.orch.Status(ctx)
	require.NoError(t, err)
	return s
}

func TestStart_FirstTickAdvancesOneBatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(120000))
	ctx := context.Background()

	s, err := h.orch.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 120000, s.Total)
	assert.Equal(t, 0, s.Offset)
	assert.Equal(t, 1, s.Phase)
	assert.Equal(t, 1, h.counts(t, tickQueue).Pending)

	s = h.runTick(t)
	assert.Equal(t, 500, s.Offset)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 10, h.counts(t, bulkQueue).Pending)

	first, err := h.queue.Claim(ctx, bulkQueue, time.Minute)
	require.NoError(t, err)
	p, err := jobs.Decode(first.Payload)
	require.NoError(t, err)
	bulk := p.(jobs.BulkSyncJob)
	assert.Len(t, bulk.PackageNames, 50)
	require.NotNil(t, bulk.Phase)
	assert.Equal(t, 1, *bulk.Phase)
}

func TestTick_RestartResumesWithoutDuplicates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(120000))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)

	// the first tick runs but its process dies before acknowledging it
	job, tick := h.nextTick(t)
	require.NoError(t, h.orch.Tick(ctx, tick))
	assert.Equal(t, 10, h.counts(t, bulkQueue).Pending)

	h.orch = h.newOrchestrator()
	require.NoError(t, h.orch.Recover(ctx))

	s, err := h.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, s.Offset)

	// the unacknowledged tick is redelivered after its visibility expires
	h.clock.Advance(2 * time.Minute)
	redelivered, err := h.queue.Claim(ctx, tickQueue, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, job.ID, redelivered.ID)
	require.NoError(t, h.orch.Tick(ctx, tick))
	require.NoError(t, h.queue.Complete(ctx, redelivered))
	assert.Equal(t, 10, h.counts(t, bulkQueue).Pending, "stale tick must not enqueue again")

	s = h.runTick(t)
	assert.Equal(t, 1000, s.Offset)
	assert.Equal(t, 20, h.counts(t, bulkQueue).Pending)
}

func TestTick_CompletesAndStopsScheduling(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(1200))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)

	assert.Equal(t, 500, h.runTick(t).Offset)
	assert.Equal(t, 1000, h.runTick(t).Offset)
	s := h.runTick(t)
	assert.Equal(t, 1200, s.Offset)
	assert.Equal(t, StatusCompleted, s.Status)

	assert.Equal(t, 24, h.counts(t, bulkQueue).Pending)
	assert.Zero(t, h.counts(t, tickQueue).Pending)
}

func TestPauseResume_OffsetIsMonotonic(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(2000))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)

	last := 0
	for i := 0; ; i++ {
		if i%2 == 1 {
			s, err := h.orch.Pause(ctx)
			require.NoError(t, err)
			assert.Equal(t, StatusPaused, s.Status)

			// a tick that was already scheduled is a no-op while paused
			job, tick := h.nextTick(t)
			require.NoError(t, h.orch.Tick(ctx, tick))
			require.NoError(t, h.queue.Complete(ctx, job))
			paused, err := h.orch.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, last, paused.Offset)

			_, err = h.orch.Resume(ctx)
			require.NoError(t, err)
		}

		s := h.runTick(t)
		assert.GreaterOrEqual(t, s.Offset, last)
		last = s.Offset
		if s.Status == StatusCompleted {
			break
		}
		require.Less(t, i, 10, "backfill did not complete")
	}
	assert.Equal(t, 2000, last)
}

func TestTransitions_RejectedWithoutMutation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(10))
	ctx := context.Background()

	_, err := h.orch.Pause(ctx)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, VerbPause, te.Verb)
	assert.Equal(t, StatusIdle, te.From)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.orch.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.orch.Start(ctx)
	require.NoError(t, err)
	_, err = h.orch.Start(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.orch.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err := h.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 1, s.Phase)
	assert.Equal(t, 1, h.enum.calls)
}

func TestStart_EnumerationFailure(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	reg := regmocks.NewMockClient(ctrl)
	kv := kvstore.NewMemoryStore()
	q := queue.NewMemoryStore(nil)
	ctx := context.Background()

	reg.EXPECT().EnumeratePackages(gomock.Any(), 100).Return(nil, errors.New("replicate unreachable"))

	o := New(kv, reg, q, Config{BulkQueue: bulkQueue, TickQueue: tickQueue, BatchSize: 10, ChunkSize: 5, PageSize: 100})
	s, err := o.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusError, s.Status)
	assert.Contains(t, s.Error, "replicate unreachable")

	stored, err := o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusError, stored.Status)

	counts, err := q.Counts(ctx, tickQueue)
	require.NoError(t, err)
	assert.Zero(t, counts.Pending)

	reset, err := o.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, reset.Status)
	assert.Equal(t, 1, reset.Phase)
}

func TestRequest_LazyInitializationOnTick(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(700))
	ctx := context.Background()

	s, err := h.orch.Request(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Zero(t, s.Total)
	assert.Zero(t, h.enum.calls)

	s = h.runTick(t)
	assert.Equal(t, 1, h.enum.calls)
	assert.Equal(t, 700, s.Total)
	assert.Equal(t, 500, s.Offset)

	s = h.runTick(t)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 1, h.enum.calls)
}

func TestReset_ClearsRunAndNewRunUsesNextPhase(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(1000))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)
	h.runTick(t)
	phase := 1
	require.NoError(t, h.orch.RecordProgress(ctx, &phase, 40, 2))

	s, err := h.orch.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Status: StatusIdle, Phase: 1}, s)
	_, err = h.kv.Get(ctx, PackagesKey)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	// a tick scheduled by the old run is ignored
	job, tick := h.nextTick(t)
	require.NoError(t, h.orch.Tick(ctx, tick))
	require.NoError(t, h.queue.Complete(ctx, job))

	s, err = h.orch.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Phase)
	assert.Zero(t, s.Synced)

	// late results of the old run do not count toward the new one
	require.NoError(t, h.orch.RecordProgress(ctx, &phase, 10, 0))
	s, err = h.orch.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.Synced)
}

func TestStatus_MergesCountersAndRate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(1000))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)
	phase := 1
	require.NoError(t, h.orch.RecordProgress(ctx, &phase, 90, 10))
	require.NoError(t, h.orch.RecordProgress(ctx, nil, 1000, 0))

	h.clock.Advance(10 * time.Second)
	s, err := h.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, s.Synced)
	assert.Equal(t, 10, s.Failed)
	assert.InDelta(t, 10.0, s.Rate, 0.001)
}

func TestTick_MissingCandidateListIsError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(100))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, h.kv.Delete(ctx, PackagesKey))

	s := h.runTick(t)
	assert.Equal(t, StatusError, s.Status)
	assert.Contains(t, s.Error, "candidate package list")
}

func TestTick_ScheduleFailureIsRetried(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(2000))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)
	h.orch = h.newOrchestratorWith(failTicks(h.queue, 1))

	job, tick := h.nextTick(t)
	err = h.orch.Tick(ctx, tick)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to schedule backfill tick")

	s, err := h.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 500, s.Offset, "progress is saved before scheduling")
	assert.Zero(t, h.counts(t, tickQueue).Pending)

	// the failed tick goes back to the queue and is stale when it runs again
	require.NoError(t, h.queue.Retry(ctx, job, h.clock.Now(), err.Error()))
	h.clock.Advance(time.Second)
	retried, err := h.queue.Claim(ctx, tickQueue, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, retried)
	require.NoError(t, h.orch.Tick(ctx, tick))
	require.NoError(t, h.queue.Complete(ctx, retried))
	assert.Equal(t, 10, h.counts(t, bulkQueue).Pending, "stale tick must not enqueue again")

	last := 500
	for i := 0; i < 10; i++ {
		s = h.runTick(t)
		require.GreaterOrEqual(t, s.Offset, last)
		last = s.Offset
		if s.Status == StatusCompleted {
			break
		}
	}
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 2000, s.Offset)
}

func TestVerbs_ScheduleFailureParksRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		verb  func(o *Orchestrator, ctx context.Context) (State, error)
		total int
	}{
		{name: "start", verb: (*Orchestrator).Start, total: 700},
		{name: "request", verb: (*Orchestrator).Request, total: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, packageNames(700))
			ctx := context.Background()
			failing := h.newOrchestratorWith(failTicks(h.queue, 1))

			s, err := tt.verb(failing, ctx)
			require.Error(t, err)
			assert.Equal(t, StatusPaused, s.Status)
			assert.Equal(t, tt.total, s.Total)

			stored, err := h.orch.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, StatusPaused, stored.Status)

			_, err = h.orch.Resume(ctx)
			require.NoError(t, err)
			assert.Equal(t, 500, h.runTick(t).Offset)
			assert.Equal(t, StatusCompleted, h.runTick(t).Status)
		})
	}
}

func TestResume_ScheduleFailureStaysPaused(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(700))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)
	_, err = h.orch.Pause(ctx)
	require.NoError(t, err)

	s, err := h.newOrchestratorWith(failTicks(h.queue, 1)).Resume(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusPaused, s.Status)

	s, err = h.orch.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s.Status)
}

func TestRecover_ReturnsScheduleFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, packageNames(700))
	ctx := context.Background()

	_, err := h.orch.Start(ctx)
	require.NoError(t, err)

	err = h.newOrchestratorWith(failTicks(h.queue, 1)).Recover(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue unavailable")
}

func TestTick_ConcurrentVerbFromAnotherProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verb       func(o *Orchestrator, ctx context.Context) (State, error)
		wantStatus Status
		wantOffset int
	}{
		{name: "pause keeps progress", verb: (*Orchestrator).Pause, wantStatus: StatusPaused, wantOffset: 500},
		{name: "reset drops progress", verb: (*Orchestrator).Reset, wantStatus: StatusIdle, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, packageNames(2000))
			ctx := context.Background()

			_, err := h.orch.Start(ctx)
			require.NoError(t, err)

			// a second process runs the verb while this tick enqueues its batch
			other := h.newOrchestrator()
			fired := false
			ticking := h.newOrchestratorWith(&hookedEnqueuer{next: h.queue, hook: func(queueName string) error {
				if queueName == bulkQueue && !fired {
					fired = true
					_, err := tt.verb(other, ctx)
					return err
				}
				return nil
			}})

			job, tick := h.nextTick(t)
			require.NoError(t, ticking.Tick(ctx, tick))
			require.NoError(t, h.queue.Complete(ctx, job))
			require.True(t, fired)

			s, err := h.orch.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, s.Status)
			assert.Equal(t, tt.wantOffset, s.Offset)
			assert.Zero(t, h.counts(t, tickQueue).Pending, "no tick is scheduled after the verb")
		})
	}
}
