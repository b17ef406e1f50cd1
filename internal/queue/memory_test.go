package queue

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_EnqueueDedup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testclock.NewClock(epoch)
	store := NewMemoryStore(clk)

	res, err := store.Enqueue(ctx, "sync", []byte(`{}`), EnqueueOptions{Key: "sync:left-pad:10"})
	require.NoError(t, err)
	assert.Equal(t, Accepted, res)

	res, err = store.Enqueue(ctx, "sync", []byte(`{}`), EnqueueOptions{Key: "sync:left-pad:10"})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)

	// same key on another queue is independent
	res, err = store.Enqueue(ctx, "bulk-sync", []byte(`{}`), EnqueueOptions{Key: "sync:left-pad:10"})
	require.NoError(t, err)
	assert.Equal(t, Accepted, res)

	// still a duplicate while active
	job, err := store.Claim(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	res, err = store.Enqueue(ctx, "sync", []byte(`{}`), EnqueueOptions{Key: "sync:left-pad:10"})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)

	// finished jobs release their key
	require.NoError(t, store.Complete(ctx, job))
	res, err = store.Enqueue(ctx, "sync", []byte(`{}`), EnqueueOptions{Key: "sync:left-pad:10"})
	require.NoError(t, err)
	assert.Equal(t, Accepted, res)
}

func TestMemoryStore_ClaimOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testclock.NewClock(epoch)
	store := NewMemoryStore(clk)

	_, err := store.Enqueue(ctx, "q", []byte(`"low"`), EnqueueOptions{})
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = store.Enqueue(ctx, "q", []byte(`"high"`), EnqueueOptions{Priority: 10})
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "q", []byte(`"delayed"`), EnqueueOptions{Priority: 100, Delay: time.Hour})
	require.NoError(t, err)

	first, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `"high"`, string(first.Payload))
	assert.Equal(t, 1, first.Attempts)

	second, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `"low"`, string(second.Payload))

	none, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, none)

	clk.Advance(time.Hour)
	delayed, err := store.Claim(ctx, "q", 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, delayed)
	assert.Equal(t, `"delayed"`, string(delayed.Payload))
}

func TestMemoryStore_VisibilityTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testclock.NewClock(epoch)
	store := NewMemoryStore(clk)

	_, err := store.Enqueue(ctx, "q", []byte(`{}`), EnqueueOptions{Key: "k"})
	require.NoError(t, err)

	crashed, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, crashed)

	hidden, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, hidden)

	clk.Advance(2 * time.Minute)
	recovered, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, recovered)
	assert.Equal(t, crashed.ID, recovered.ID)
	assert.Equal(t, 2, recovered.Attempts)

	// the crashed holder lost its lease
	require.ErrorIs(t, store.Complete(ctx, crashed), ErrLeaseLost)
	require.NoError(t, store.Complete(ctx, recovered))
}

func TestMemoryStore_RetryReleaseFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testclock.NewClock(epoch)
	store := NewMemoryStore(clk)

	_, err := store.Enqueue(ctx, "q", []byte(`{}`), EnqueueOptions{MaxAttempts: 3})
	require.NoError(t, err)

	job, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, job.MaxAttempts)
	require.NoError(t, store.Retry(ctx, job, epoch.Add(time.Minute), "boom"))

	none, err := store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, none)

	clk.Advance(time.Minute)
	job, err = store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, "boom", job.LastError)

	require.NoError(t, store.Release(ctx, job))
	job, err = store.Claim(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)

	require.NoError(t, store.Fail(ctx, job, "gave up"))
	failed, err := store.ListFailed(ctx, "q", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gave up", failed[0].LastError)

	counts, err := store.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 1}, counts)
}

func TestMemoryStore_Trim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := testclock.NewClock(epoch)
	store := NewMemoryStore(clk)

	for range 5 {
		_, err := store.Enqueue(ctx, "q", []byte(`{}`), EnqueueOptions{})
		require.NoError(t, err)
		job, err := store.Claim(ctx, "q", time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, job))
		clk.Advance(time.Second)
	}

	removed, err := store.Trim(ctx, "q", StateCompleted, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	counts, err := store.Counts(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Completed)

	removed, err = store.Trim(ctx, "q", StateCompleted, 2)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
