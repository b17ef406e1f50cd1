//go:build integration

package releases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/database"
)

const releaseID = "7f8c1a52-2b9e-4a61-9f0e-0c6a4d1e3b21"

func TestPostgresStore(t *testing.T) {
	t.Parallel()
	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	for _, stmt := range []string{
		`INSERT INTO upcoming_release (id, package_name, title, target_version, version_match_type)
		VALUES ('` + releaseID + `', 'vite', 'Vite 7', '7', 'major')`,
		`INSERT INTO user_preference (user_id, email) VALUES ('u1', 'u1@example.com'), ('u2', 'u2@example.com')`,
		`INSERT INTO release_follow (user_id, release_id) VALUES ('u1', '` + releaseID + `')`,
		`INSERT INTO package_follow (user_id, package_name) VALUES ('u2', 'vite'), ('u3', 'vite')`,
	} {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	store := NewPostgresStore(pool)
	pending, err := store.PendingForPackage(ctx, "vite")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, UpcomingRelease{
		ID:            releaseID,
		PackageName:   "vite",
		Title:         "Vite 7",
		TargetVersion: "7",
		MatchType:     MatchMajor,
		Status:        StatusUpcoming,
	}, pending[0])

	releaseFollowers, err := store.ReleaseFollowers(ctx, releaseID)
	require.NoError(t, err)
	assert.Equal(t, []Recipient{{UserID: "u1", Email: "u1@example.com"}}, releaseFollowers)

	packageFollowers, err := store.PackageFollowers(ctx, "vite")
	require.NoError(t, err)
	assert.Equal(t, []Recipient{{UserID: "u2", Email: "u2@example.com"}, {UserID: "u3"}}, packageFollowers)

	at := time.Now().UTC()
	marked, err := store.MarkReleased(ctx, releaseID, "7.0.0", at)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = store.MarkReleased(ctx, releaseID, "7.0.1", at)
	require.NoError(t, err)
	assert.False(t, marked, "a release transitions only once")

	pending, err = store.PendingForPackage(ctx, "vite")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
