// Package notify computes what a package update means for its followers and
// routes notifications to them according to their preferences.
package notify

import (
	"context"
	"strings"

	"github.com/Masterminds/semver/v3"
)

//go:generate mockgen -destination=mocks/mock_sources.go -package=mocks -source=enrichment.go VulnerabilitySource,ChangelogSource

// DiffKind is the most significant version component that changed
type DiffKind string

// Version difference kinds
const (
	DiffMajor      DiffKind = "major"
	DiffMinor      DiffKind = "minor"
	DiffPatch      DiffKind = "patch"
	DiffPrerelease DiffKind = "prerelease"
	DiffNone       DiffKind = "none"
)

// Severity routes a notification
type Severity string

// Severity tiers
const (
	SeverityCritical  Severity = "critical"
	SeverityImportant Severity = "important"
	SeverityInfo      Severity = "info"
)

// VersionDelta describes a version change
type VersionDelta struct {
	DiffKind         DiffKind `json:"diffKind"`
	IsBreakingChange bool     `json:"isBreakingChange"`
	IsFirstStable    bool     `json:"isFirstStable"`
}

// SecurityDelta compares known vulnerabilities of two versions
type SecurityDelta struct {
	FixedCount       int  `json:"fixedCount"`
	IntroducedCount  int  `json:"introducedCount"`
	IsSecurityUpdate bool `json:"isSecurityUpdate"`
}

// Enrichment is everything known about one package update
type Enrichment struct {
	VersionDelta     VersionDelta  `json:"versionDelta"`
	SecurityDelta    SecurityDelta `json:"securityDelta"`
	ChangelogExcerpt string        `json:"changelogExcerpt,omitempty"`
	Severity         Severity      `json:"severity"`
}

// VulnerabilityCounts are the known advisories affecting one version
type VulnerabilityCounts struct {
	Total    int
	Critical int
	High     int
	Moderate int
	Low      int
}

// VulnerabilitySource looks up advisories affecting a package version
type VulnerabilitySource interface {
	Vulnerabilities(ctx context.Context, packageName, version string) (VulnerabilityCounts, error)
}

// ChangelogSource finds the release notes of a version. It returns "" when
// there are none.
type ChangelogSource interface {
	ReleaseNotes(ctx context.Context, packageName, repositoryURL, version string) (string, error)
}

// AnalyzeVersion classifies the change from oldVersion to newVersion.
// Versions that do not parse as semver are reported as DiffNone.
func AnalyzeVersion(oldVersion, newVersion string) VersionDelta {
	oldV, err := semver.NewVersion(oldVersion)
	if err != nil {
		return VersionDelta{DiffKind: DiffNone}
	}
	newV, err := semver.NewVersion(newVersion)
	if err != nil {
		return VersionDelta{DiffKind: DiffNone}
	}

	kind := DiffNone
	switch {
	case oldV.Major() != newV.Major():
		kind = DiffMajor
	case oldV.Minor() != newV.Minor():
		kind = DiffMinor
	case oldV.Patch() != newV.Patch():
		kind = DiffPatch
	case oldV.Prerelease() != newV.Prerelease():
		kind = DiffPrerelease
	}

	return VersionDelta{
		DiffKind:         kind,
		IsBreakingChange: kind == DiffMajor,
		IsFirstStable:    oldV.Major() == 0 && newV.Major() == 1,
	}
}

// AnalyzeSecurity compares the advisories of both versions
func AnalyzeSecurity(ctx context.Context, src VulnerabilitySource, packageName, oldVersion, newVersion string) (SecurityDelta, error) {
	before, err := src.Vulnerabilities(ctx, packageName, oldVersion)
	if err != nil {
		return SecurityDelta{}, err
	}
	after, err := src.Vulnerabilities(ctx, packageName, newVersion)
	if err != nil {
		return SecurityDelta{}, err
	}

	fixed := max(0, before.Total-after.Total)
	return SecurityDelta{
		FixedCount:       fixed,
		IntroducedCount:  max(0, after.Total-before.Total),
		IsSecurityUpdate: fixed > 0,
	}, nil
}

// FetchChangelog returns the release notes of newVersion, trimmed to a plain
// text excerpt of at most maxLen runes
func FetchChangelog(
	ctx context.Context, src ChangelogSource, packageName, repositoryURL, newVersion string, maxLen int,
) (string, error) {
	notes, err := src.ReleaseNotes(ctx, packageName, repositoryURL, newVersion)
	if err != nil || notes == "" {
		return "", err
	}
	return Excerpt(notes, maxLen), nil
}

// ClassifySeverity picks the notification tier of an update
func ClassifySeverity(v VersionDelta, s SecurityDelta) Severity {
	switch {
	case s.FixedCount > 0:
		return SeverityCritical
	case v.IsBreakingChange || v.IsFirstStable:
		return SeverityImportant
	default:
		return SeverityInfo
	}
}

// Excerpt strips markup from release notes and truncates them to maxLen runes
func Excerpt(markup string, maxLen int) string {
	text := strings.Join(strings.Fields(StripMarkup(markup)), " ")
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	return strings.TrimSpace(string(runes[:maxLen-1])) + "…"
}
