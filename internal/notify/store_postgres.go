package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads follows and preferences from package_follow,
// user_preference and chat_integration, and writes the notification table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListFollowers implements FollowerStore. Users without a preference row
// get the zero Preferences and are therefore never notified.
func (p *PostgresStore) ListFollowers(ctx context.Context, packageName string) ([]Follower, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT f.user_id,
		       coalesce(pref.email, ''),
		       coalesce(pref.notify_all_updates, false),
		       coalesce(pref.notify_security_only, false),
		       coalesce(pref.notify_major_only, false),
		       coalesce(pref.in_app_enabled, false),
		       coalesce(pref.email_immediate_critical, false),
		       coalesce(chat.webhook_url, '')
		FROM package_follow f
		LEFT JOIN user_preference pref ON pref.user_id = f.user_id
		LEFT JOIN chat_integration chat ON chat.user_id = f.user_id AND chat.enabled
		WHERE f.package_name = $1
		ORDER BY f.user_id`,
		packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers: %w", err)
	}

	followers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Follower, error) {
		var f Follower
		err := row.Scan(
			&f.UserID,
			&f.Email,
			&f.Preferences.NotifyAllUpdates,
			&f.Preferences.NotifySecurityOnly,
			&f.Preferences.NotifyMajorOnly,
			&f.Preferences.InAppEnabled,
			&f.Preferences.EmailImmediateCritical,
			&f.ChatWebhookURL,
		)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan followers: %w", err)
	}
	return followers, nil
}

// InsertNotification implements NotificationStore
func (p *PostgresStore) InsertNotification(ctx context.Context, r Record) error {
	var excerpt *string
	if r.ChangelogExcerpt != "" {
		excerpt = &r.ChangelogExcerpt
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notification (
			user_id, package_name, new_version, previous_version, severity,
			is_security_update, is_breaking_change, changelog_excerpt,
			vulnerabilities_fixed, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)
		ON CONFLICT (user_id, package_name, new_version) DO NOTHING`,
		r.UserID, r.PackageName, r.NewVersion, r.PreviousVersion, string(r.Severity),
		r.IsSecurityUpdate, r.IsBreakingChange, excerpt,
		r.VulnerabilitiesFixed, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification for %s: %w", r.UserID, err)
	}
	return nil
}
