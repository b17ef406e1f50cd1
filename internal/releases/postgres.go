package releases

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the upcoming_release, release_follow,
// package_follow and user_preference tables
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PendingForPackage implements Store
func (p *PostgresStore) PendingForPackage(ctx context.Context, packageName string) ([]UpcomingRelease, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, coalesce(package_name, ''), title, target_version, version_match_type, status
		FROM upcoming_release
		WHERE package_name = $1 AND status = 'upcoming'
		ORDER BY created_at, id`,
		packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming releases: %w", err)
	}
	releases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UpcomingRelease, error) {
		var r UpcomingRelease
		err := row.Scan(&r.ID, &r.PackageName, &r.Title, &r.TargetVersion, &r.MatchType, &r.Status)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan upcoming releases: %w", err)
	}
	return releases, nil
}

// MarkReleased implements Store. The status predicate makes the update a
// compare-and-set across processes.
func (p *PostgresStore) MarkReleased(ctx context.Context, id, version string, at time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE upcoming_release
		SET status = 'released', released_version = $2, released_at = $3
		WHERE id = $1::uuid AND status = 'upcoming'`,
		id, version, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark release %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseFollowers implements Store
func (p *PostgresStore) ReleaseFollowers(ctx context.Context, releaseID string) ([]Recipient, error) {
	return p.recipients(ctx, `
		SELECT f.user_id, coalesce(pref.email, '')
		FROM release_follow f
		LEFT JOIN user_preference pref ON pref.user_id = f.user_id
		WHERE f.release_id = $1::uuid
		ORDER BY f.user_id`, releaseID)
}

// PackageFollowers implements Store
func (p *PostgresStore) PackageFollowers(ctx context.Context, packageName string) ([]Recipient, error) {
	return p.recipients(ctx, `
		SELECT f.user_id, coalesce(pref.email, '')
		FROM package_follow f
		LEFT JOIN user_preference pref ON pref.user_id = f.user_id
		WHERE f.package_name = $1
		ORDER BY f.user_id`, packageName)
}

func (p *PostgresStore) recipients(ctx context.Context, query string, arg string) ([]Recipient, error) {
	rows, err := p.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers: %w", err)
	}
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipient, error) {
		var r Recipient
		err := row.Scan(&r.UserID, &r.Email)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan followers: %w", err)
	}
	return recipients, nil
}
