// Package releases launches upcoming releases when a matching version of
// their package is published.
package releases

import (
	"context"
	"time"

	"github.com/stacklok/npm-sync/internal/versions"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=releases.go Store

// MatchType decides which published versions launch a release
type MatchType string

// Match types
const (
	MatchExact MatchType = "exact"
	MatchMajor MatchType = "major"
)

// Status is the lifecycle state of an upcoming release
type Status string

// Release statuses
const (
	StatusUpcoming Status = "upcoming"
	StatusReleased Status = "released"
)

// UpcomingRelease is a user-submitted expectation that a package will publish a version
type UpcomingRelease struct {
	ID              string     `json:"id"`
	PackageName     string     `json:"packageName,omitempty"`
	Title           string     `json:"title"`
	TargetVersion   string     `json:"targetVersion"`
	MatchType       MatchType  `json:"versionMatchType"`
	Status          Status     `json:"status"`
	ReleasedVersion string     `json:"releasedVersion,omitempty"`
	ReleasedAt      *time.Time `json:"releasedAt,omitempty"`
}

// Recipient is a user to notify about a launch
type Recipient struct {
	UserID string
	Email  string
}

// Store reads upcoming releases and records launches
type Store interface {
	// PendingForPackage lists the upcoming releases linked to a package
	PendingForPackage(ctx context.Context, packageName string) ([]UpcomingRelease, error)
	// MarkReleased moves an upcoming release to released. It reports false,
	// without error, when the release was no longer upcoming.
	MarkReleased(ctx context.Context, id, version string, at time.Time) (bool, error)
	// ReleaseFollowers lists users following the release itself
	ReleaseFollowers(ctx context.Context, releaseID string) ([]Recipient, error)
	// PackageFollowers lists users following a package
	PackageFollowers(ctx context.Context, packageName string) ([]Recipient, error)
}

// Matches reports whether publishing version launches r
func Matches(r UpcomingRelease, version string) bool {
	switch r.MatchType {
	case MatchExact:
		target := versions.Normalize(r.TargetVersion)
		return target != "" && target == versions.Normalize(version)
	case MatchMajor:
		return versions.SameMajor(version, r.TargetVersion) && versions.AtLeast(version, r.TargetVersion)
	default:
		return false
	}
}

// mergeRecipients concatenates the lists, keeping the first entry per user
func mergeRecipients(lists ...[]Recipient) []Recipient {
	seen := map[string]struct{}{}
	var out []Recipient
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r.UserID]; dup {
				continue
			}
			seen[r.UserID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
