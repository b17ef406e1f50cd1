// Package queue implements the durable job queue shared by every pipeline
// stage: deduplicating enqueue, claim with a visibility timeout, retries with
// exponential backoff and bounded retention of finished jobs.
package queue

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=queue.go Store,Enqueuer

// State is the lifecycle state of a job
type State string

const (
	// StatePending jobs wait for their run time and a free consumer
	StatePending State = "pending"
	// StateActive jobs are claimed and invisible until their lock expires
	StateActive State = "active"
	// StateCompleted jobs finished successfully
	StateCompleted State = "completed"
	// StateFailed jobs exhausted their attempts or failed permanently
	StateFailed State = "failed"
)

// DefaultMaxAttempts is used when EnqueueOptions.MaxAttempts is zero
const DefaultMaxAttempts = 5

// ErrLeaseLost is returned when finishing a job whose claim has expired and
// been taken over by another consumer
var ErrLeaseLost = errors.New("job lease lost")

// EnqueueResult tells a producer whether its job was stored
type EnqueueResult int

const (
	// Accepted means a new job was stored
	Accepted EnqueueResult = iota
	// Duplicate means an unfinished job with the same key already exists
	Duplicate
)

func (r EnqueueResult) String() string {
	if r == Duplicate {
		return "duplicate"
	}
	return "accepted"
}

// EnqueueOptions control how a job is stored
type EnqueueOptions struct {
	// Key deduplicates jobs: while a job with this key is pending or active
	// in the same queue, further enqueues are rejected. Empty disables dedup.
	Key string
	// Priority orders claimable jobs, higher first
	Priority int
	// Delay postpones the first run
	Delay time.Duration
	// MaxAttempts bounds retries, DefaultMaxAttempts when zero
	MaxAttempts int
}

// Job is a unit of work stored in a queue
type Job struct {
	ID          string
	Queue       string
	Key         string
	Payload     []byte
	State       State
	Priority    int
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LockedUntil time.Time
	LastError   string
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// Counts is the number of jobs per state in a queue
type Counts struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Enqueuer is the producer side of a queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload []byte, opts EnqueueOptions) (EnqueueResult, error)
}

// Store is a durable queue backend. Several processes may consume the same
// queue concurrently; Claim guarantees a job has at most one active holder.
type Store interface {
	Enqueuer

	// Claim returns the next runnable job and hides it from other consumers
	// for visibility. It returns nil when nothing is runnable. Jobs whose
	// lock expired are runnable again.
	Claim(ctx context.Context, queue string, visibility time.Duration) (*Job, error)

	// Complete marks a claimed job as completed
	Complete(ctx context.Context, job *Job) error

	// Retry returns a claimed job to pending, runnable at runAt
	Retry(ctx context.Context, job *Job, runAt time.Time, cause string) error

	// Release returns a claimed job to pending without consuming the attempt
	Release(ctx context.Context, job *Job) error

	// Fail marks a claimed job as failed; it is kept for inspection only
	Fail(ctx context.Context, job *Job, cause string) error

	// Trim deletes the oldest finished jobs in state beyond keep
	Trim(ctx context.Context, queue string, state State, keep int) (int, error)

	// ListFailed returns the most recently failed jobs
	ListFailed(ctx context.Context, queue string, limit int) ([]Job, error)

	// Counts returns per-state job counts
	Counts(ctx context.Context, queue string) (Counts, error)

	// Close releases the resources held by the store
	Close() error
}
