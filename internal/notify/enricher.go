package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Update identifies one version change of a package
type Update struct {
	PackageName     string
	RepositoryURL   string
	PreviousVersion string
	NewVersion      string
}

// Enricher runs the update analyses. Each analysis is best-effort: a failing
// lookup is logged and contributes its zero value, so severity and dispatch
// always proceed.
type Enricher struct {
	vulns        VulnerabilitySource
	changelogs   ChangelogSource
	changelogMax int
	logger       *slog.Logger
}

// NewEnricher creates an enricher. Either source may be nil to skip that analysis.
func NewEnricher(vulns VulnerabilitySource, changelogs ChangelogSource, changelogMax int) *Enricher {
	return &Enricher{
		vulns:        vulns,
		changelogs:   changelogs,
		changelogMax: changelogMax,
		logger:       slog.With("component", "notification-enricher"),
	}
}

// Enrich analyses u. The security and changelog lookups run concurrently.
func (e *Enricher) Enrich(ctx context.Context, u Update) Enrichment {
	var (
		security  SecurityDelta
		changelog string
	)

	// errgroup is used for its goroutine bookkeeping only; the analyses
	// never return errors, so one failing cannot cancel the other
	var g errgroup.Group
	if e.vulns != nil {
		g.Go(func() error {
			delta, err := AnalyzeSecurity(ctx, e.vulns, u.PackageName, u.PreviousVersion, u.NewVersion)
			if err != nil {
				e.logger.Warn("Security analysis failed", "package", u.PackageName, "error", err)
				return nil
			}
			security = delta
			return nil
		})
	}
	if e.changelogs != nil && u.RepositoryURL != "" {
		g.Go(func() error {
			excerpt, err := FetchChangelog(ctx, e.changelogs, u.PackageName, u.RepositoryURL, u.NewVersion, e.changelogMax)
			if err != nil {
				e.logger.Warn("Changelog lookup failed", "package", u.PackageName, "error", err)
				return nil
			}
			changelog = excerpt
			return nil
		})
	}
	version := AnalyzeVersion(u.PreviousVersion, u.NewVersion)
	_ = g.Wait()

	return Enrichment{
		VersionDelta:     version,
		SecurityDelta:    security,
		ChangelogExcerpt: changelog,
		Severity:         ClassifySeverity(version, security),
	}
}
