package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the kv_entry table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get implements Store
func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_entry WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set implements Store
func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_entry (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_entry WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Incr implements Store. The row lock taken by the upsert serialises
// concurrent increments across processes.
func (p *PostgresStore) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `
		INSERT INTO kv_entry (key, value, updated_at)
		VALUES ($1, convert_to($2::bigint::text, 'UTF8'), now())
		ON CONFLICT (key) DO UPDATE
		SET value = convert_to((convert_from(kv_entry.value, 'UTF8')::bigint + $2::bigint)::text, 'UTF8'),
		    updated_at = now()
		RETURNING value`,
		key, delta).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment %q: %w", key, err)
	}
	n, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value of %q is not a counter: %w", key, err)
	}
	return n, nil
}
