package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

// MemoryStore is a process-local Store. It honours the same dedup, claim and
// retention rules as the PostgreSQL store but does not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	clock clock.Clock
	jobs  map[string]*Job
	// live maps queue+key to the id of the unfinished job holding the key
	live map[string]string
}

// NewMemoryStore creates an empty in-memory queue store
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryStore{
		clock: clk,
		jobs:  make(map[string]*Job),
		live:  make(map[string]string),
	}
}

func liveKey(queue, key string) string {
	return queue + "\x00" + key
}

// Enqueue implements Store
func (m *MemoryStore) Enqueue(_ context.Context, queue string, payload []byte, opts EnqueueOptions) (EnqueueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Key != "" {
		if _, exists := m.live[liveKey(queue, opts.Key)]; exists {
			return Duplicate, nil
		}
	}

	now := m.clock.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       queue,
		Key:         opts.Key,
		Payload:     append([]byte(nil), payload...),
		State:       StatePending,
		Priority:    opts.Priority,
		MaxAttempts: maxAttemptsOr(opts.MaxAttempts),
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
	}
	m.jobs[job.ID] = job
	if opts.Key != "" {
		m.live[liveKey(queue, opts.Key)] = job.ID
	}
	return Accepted, nil
}

// Claim implements Store
func (m *MemoryStore) Claim(_ context.Context, queue string, visibility time.Duration) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var best *Job
	for _, job := range m.jobs {
		if job.Queue != queue || !claimable(job, now) {
			continue
		}
		if best == nil || before(job, best) {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}

	best.State = StateActive
	best.Attempts++
	best.LockedUntil = now.Add(visibility)
	claimed := *best
	return &claimed, nil
}

func claimable(job *Job, now time.Time) bool {
	switch job.State {
	case StatePending:
		return !job.RunAt.After(now)
	case StateActive:
		return job.LockedUntil.Before(now)
	default:
		return false
	}
}

func before(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.RunAt.Equal(b.RunAt) {
		return a.RunAt.Before(b.RunAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// owned returns the stored job if the caller still holds its claim
func (m *MemoryStore) owned(job *Job) (*Job, error) {
	stored, ok := m.jobs[job.ID]
	if !ok || stored.State != StateActive || stored.Attempts != job.Attempts {
		return nil, fmt.Errorf("job %s: %w", job.ID, ErrLeaseLost)
	}
	return stored, nil
}

func (m *MemoryStore) finish(stored *Job, state State, cause string) {
	stored.State = state
	stored.LastError = cause
	stored.FinishedAt = m.clock.Now()
	stored.LockedUntil = time.Time{}
	if stored.Key != "" {
		delete(m.live, liveKey(stored.Queue, stored.Key))
	}
}

// Complete implements Store
func (m *MemoryStore) Complete(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.owned(job)
	if err != nil {
		return err
	}
	m.finish(stored, StateCompleted, "")
	return nil
}

// Fail implements Store
func (m *MemoryStore) Fail(_ context.Context, job *Job, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.owned(job)
	if err != nil {
		return err
	}
	m.finish(stored, StateFailed, cause)
	return nil
}

// Retry implements Store
func (m *MemoryStore) Retry(_ context.Context, job *Job, runAt time.Time, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.owned(job)
	if err != nil {
		return err
	}
	stored.State = StatePending
	stored.RunAt = runAt
	stored.LastError = cause
	stored.LockedUntil = time.Time{}
	return nil
}

// Release implements Store
func (m *MemoryStore) Release(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.owned(job)
	if err != nil {
		return err
	}
	stored.State = StatePending
	stored.Attempts--
	stored.LockedUntil = time.Time{}
	return nil
}

// Trim implements Store
func (m *MemoryStore) Trim(_ context.Context, queue string, state State, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.collect(queue, state)
	if len(finished) <= keep {
		return 0, nil
	}
	removed := finished[keep:]
	for _, job := range removed {
		delete(m.jobs, job.ID)
	}
	return len(removed), nil
}

// collect returns the jobs of queue in state, most recently finished first
func (m *MemoryStore) collect(queue string, state State) []*Job {
	var out []*Job
	for _, job := range m.jobs {
		if job.Queue == queue && job.State == state {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	return out
}

// ListFailed implements Store
func (m *MemoryStore) ListFailed(_ context.Context, queue string, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	failed := m.collect(queue, StateFailed)
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	out := make([]Job, 0, len(failed))
	for _, job := range failed {
		out = append(out, *job)
	}
	return out, nil
}

// Counts implements Store
func (m *MemoryStore) Counts(_ context.Context, queue string) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for _, job := range m.jobs {
		if job.Queue != queue {
			continue
		}
		switch job.State {
		case StatePending:
			c.Pending++
		case StateActive:
			c.Active++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		}
	}
	return c, nil
}

// Close implements Store
func (*MemoryStore) Close() error {
	return nil
}

func maxAttemptsOr(n int) int {
	if n <= 0 {
		return DefaultMaxAttempts
	}
	return n
}
