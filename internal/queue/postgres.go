package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, queue, dedup_key, payload, state, priority, attempts, max_attempts,
	run_at, locked_until, last_error, created_at, finished_at`

// PostgresStore implements Store on the job_queue table. Dedup relies on a
// partial unique index over (queue, dedup_key) for pending and active jobs;
// claims use FOR UPDATE SKIP LOCKED so consumers in different processes
// never block each other.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a queue store backed by pool. The pool is owned
// by the caller and is not closed by Close.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Enqueue implements Store
func (p *PostgresStore) Enqueue(
	ctx context.Context, queue string, payload []byte, opts EnqueueOptions,
) (EnqueueResult, error) {
	var key *string
	if opts.Key != "" {
		key = &opts.Key
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO job_queue (id, queue, dedup_key, payload, state, priority, max_attempts, run_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, now() + make_interval(secs => $7::double precision))
		ON CONFLICT DO NOTHING`,
		uuid.New(), queue, key, payload, opts.Priority, maxAttemptsOr(opts.MaxAttempts), opts.Delay.Seconds())
	if err != nil {
		return Accepted, fmt.Errorf("failed to enqueue job on %s: %w", queue, err)
	}
	if tag.RowsAffected() == 0 {
		return Duplicate, nil
	}
	return Accepted, nil
}

// Claim implements Store
func (p *PostgresStore) Claim(ctx context.Context, queue string, visibility time.Duration) (*Job, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE job_queue
		SET state = 'active',
		    attempts = attempts + 1,
		    locked_until = now() + make_interval(secs => $2::double precision)
		WHERE id = (
			SELECT id FROM job_queue
			WHERE queue = $1
			  AND ((state = 'pending' AND run_at <= now())
			    OR (state = 'active' AND locked_until < now()))
			ORDER BY priority DESC, run_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		queue, visibility.Seconds())

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job on %s: %w", queue, err)
	}
	return job, nil
}

// Complete implements Store
func (p *PostgresStore) Complete(ctx context.Context, job *Job) error {
	return p.transition(ctx, job, `
		UPDATE job_queue SET state = 'completed', locked_until = NULL, finished_at = now()
		WHERE id = $1 AND state = 'active' AND attempts = $2`)
}

// Fail implements Store
func (p *PostgresStore) Fail(ctx context.Context, job *Job, cause string) error {
	return p.transition(ctx, job, `
		UPDATE job_queue SET state = 'failed', locked_until = NULL, finished_at = now(), last_error = $3
		WHERE id = $1 AND state = 'active' AND attempts = $2`, cause)
}

// Retry implements Store
func (p *PostgresStore) Retry(ctx context.Context, job *Job, runAt time.Time, cause string) error {
	return p.transition(ctx, job, `
		UPDATE job_queue SET state = 'pending', locked_until = NULL, run_at = $3, last_error = $4
		WHERE id = $1 AND state = 'active' AND attempts = $2`, runAt, cause)
}

// Release implements Store
func (p *PostgresStore) Release(ctx context.Context, job *Job) error {
	return p.transition(ctx, job, `
		UPDATE job_queue SET state = 'pending', locked_until = NULL, attempts = attempts - 1
		WHERE id = $1 AND state = 'active' AND attempts = $2`)
}

func (p *PostgresStore) transition(ctx context.Context, job *Job, sql string, args ...any) error {
	id, err := uuid.Parse(job.ID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", job.ID, err)
	}
	tag, err := p.pool.Exec(ctx, sql, append([]any{id, job.Attempts}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrLeaseLost)
	}
	return nil
}

// Trim implements Store
func (p *PostgresStore) Trim(ctx context.Context, queue string, state State, keep int) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM job_queue WHERE id IN (
			SELECT id FROM job_queue
			WHERE queue = $1 AND state = $2
			ORDER BY finished_at DESC
			OFFSET $3
		)`, queue, string(state), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim %s jobs on %s: %w", state, queue, err)
	}
	return int(tag.RowsAffected()), nil
}

// ListFailed implements Store
func (p *PostgresStore) ListFailed(ctx context.Context, queue string, limit int) ([]Job, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM job_queue
		WHERE queue = $1 AND state = 'failed'
		ORDER BY finished_at DESC
		LIMIT $2`, queue, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs on %s: %w", queue, err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// Counts implements Store
func (p *PostgresStore) Counts(ctx context.Context, queue string) (Counts, error) {
	rows, err := p.pool.Query(ctx, `SELECT state, count(*) FROM job_queue WHERE queue = $1 GROUP BY state`, queue)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs on %s: %w", queue, err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return Counts{}, err
		}
		switch State(state) {
		case StatePending:
			c.Pending = n
		case StateActive:
			c.Active = n
		case StateCompleted:
			c.Completed = n
		case StateFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

// Close implements Store
func (*PostgresStore) Close() error {
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job         Job
		id          uuid.UUID
		key         *string
		state       string
		lockedUntil *time.Time
		lastError   *string
		finishedAt  *time.Time
	)
	err := row.Scan(&id, &job.Queue, &key, &job.Payload, &state, &job.Priority, &job.Attempts,
		&job.MaxAttempts, &job.RunAt, &lockedUntil, &lastError, &job.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	job.ID = id.String()
	job.State = State(state)
	if key != nil {
		job.Key = *key
	}
	if lockedUntil != nil {
		job.LockedUntil = *lockedUntil
	}
	if lastError != nil {
		job.LastError = *lastError
	}
	if finishedAt != nil {
		job.FinishedAt = *finishedAt
	}
	return &job, nil
}
