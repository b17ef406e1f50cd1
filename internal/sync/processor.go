package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/npm-sync/internal/index"
	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/otel"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/registry"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_followups.go -package=mocks -source=processor.go Notifier,ReleaseDetector,ProgressRecorder

// TracerName is the name of the tracer used for job spans
const TracerName = "github.com/stacklok/npm-sync/sync"

// Metric kinds
const (
	kindSync = "sync"
	kindBulk = "bulk"
)

// Notifier enriches and dispatches a version change
type Notifier interface {
	NotifyUpdate(ctx context.Context, u notify.Update) (notify.DispatchResult, error)
}

// ReleaseDetector launches upcoming releases matched by a published version
type ReleaseDetector interface {
	CheckAndDispatch(ctx context.Context, packageName, newVersion string) (int, error)
}

// ProgressRecorder receives the outcome of bulk sync chunks
type ProgressRecorder interface {
	RecordProgress(ctx context.Context, phase *int, synced, failed int) error
}

// Processor syncs packages from the registry into the index
type Processor struct {
	registry registry.Client
	index    index.Index
	notifier Notifier
	releases ReleaseDetector
	progress ProgressRecorder
	clock    clock.Clock
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithNotifier enables update notifications
func WithNotifier(n Notifier) Option {
	return func(p *Processor) {
		p.notifier = n
	}
}

// WithReleaseDetector enables release detection
func WithReleaseDetector(d ReleaseDetector) Option {
	return func(p *Processor) {
		p.releases = d
	}
}

// WithProgressRecorder reports bulk results
func WithProgressRecorder(r ProgressRecorder) Option {
	return func(p *Processor) {
		p.progress = r
	}
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(p *Processor) {
		p.clock = clk
	}
}

// WithMetrics records sync outcomes
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithTracer records a span per processed job
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = t
	}
}

// NewProcessor creates a processor reading from reg and writing to idx
func NewProcessor(reg registry.Client, idx index.Index, opts ...Option) *Processor {
	p := &Processor{
		registry: reg,
		index:    idx,
		clock:    clock.WallClock,
		logger:   slog.With("component", "sync-processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SyncHandler returns the queue handler of single-package sync jobs
func (p *Processor) SyncHandler() queue.Handler {
	return jobs.Handle(p.ProcessSync)
}

// BulkHandler returns the queue handler of bulk sync jobs
func (p *Processor) BulkHandler() queue.Handler {
	return jobs.Handle(func(ctx context.Context, job jobs.BulkSyncJob) error {
		_, err := p.ProcessBulk(ctx, job)
		return err
	})
}

// ProcessSync syncs one package
func (p *Processor) ProcessSync(ctx context.Context, job jobs.SyncJob) error {
	ctx, span := otel.StartSpan(ctx, p.tracer, "sync.ProcessSync", trace.WithAttributes(
		otel.AttrPackageName.String(job.PackageName),
		otel.AttrSequence.String(job.SequenceToken),
	))
	defer span.End()

	start := p.clock.Now()
	outcome, err := p.processSync(ctx, job)
	if err != nil {
		outcome = telemetry.OutcomeFailed
		otel.RecordError(span, err)
	}
	span.SetAttributes(otel.AttrOutcome.String(outcome))
	p.metrics.RecordSync(ctx, kindSync, outcome, since(p.clock, start))
	return err
}

func (p *Processor) processSync(ctx context.Context, job jobs.SyncJob) (string, error) {
	logger := p.logger.With("package", job.PackageName, "seq", job.SequenceToken)

	if job.Deleted {
		if err := p.index.Delete(ctx, job.PackageName); err != nil {
			return "", fmt.Errorf("failed to delete %s from index: %w", job.PackageName, err)
		}
		logger.Debug("Removed deleted package from index")
		return telemetry.OutcomeDeleted, nil
	}

	// must be read before the upsert overwrites it
	previous, err := p.index.Get(ctx, job.PackageName)
	if err != nil {
		logger.Warn("Failed to read indexed document, treating as first sync", "error", err)
		previous = nil
	}

	doc, err := p.fetchDocument(ctx, job.PackageName)
	if errors.Is(err, registry.ErrNotFound) {
		logger.Debug("Package not found upstream, skipping")
		return telemetry.OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}

	if err := p.index.Upsert(ctx, []index.Document{doc}); err != nil {
		return "", fmt.Errorf("failed to upsert %s: %w", job.PackageName, err)
	}

	previousVersion := ""
	if previous != nil {
		previousVersion = previous.Version
	}
	logger.Debug("Indexed package", "version", doc.Version, "previous_version", previousVersion)

	if doc.Version == "" || doc.Version == previousVersion {
		return telemetry.OutcomeSynced, nil
	}
	if previousVersion != "" {
		p.notifyUpdate(ctx, logger, notify.Update{
			PackageName:     doc.Name,
			RepositoryURL:   doc.Repository,
			PreviousVersion: previousVersion,
			NewVersion:      doc.Version,
		})
	}
	p.detectReleases(ctx, logger, doc.Name, doc.Version)
	return telemetry.OutcomeSynced, nil
}

func (p *Processor) fetchDocument(ctx context.Context, name string) (index.Document, error) {
	packument, err := p.registry.Packument(ctx, name)
	if err != nil {
		return index.Document{}, err
	}
	// a package without stats is indexed with 0 downloads; other failures
	// retry the job rather than overwrite a stored count
	downloads, err := p.registry.WeeklyDownloads(ctx, name)
	if errors.Is(err, registry.ErrNotFound) {
		downloads = 0
	} else if err != nil {
		return index.Document{}, err
	}
	return index.FromPackument(packument, downloads, p.clock.Now()), nil
}

func (p *Processor) notifyUpdate(ctx context.Context, logger *slog.Logger, u notify.Update) {
	if p.notifier == nil {
		return
	}
	if _, err := p.notifier.NotifyUpdate(ctx, u); err != nil {
		logger.Error("Update notification failed", "version", u.NewVersion, "error", err)
	}
}

func (p *Processor) detectReleases(ctx context.Context, logger *slog.Logger, name, version string) {
	if p.releases == nil {
		return
	}
	if _, err := p.releases.CheckAndDispatch(ctx, name, version); err != nil {
		logger.Error("Release detection failed", "version", version, "error", err)
	}
}

func since(clk clock.Clock, start time.Time) time.Duration {
	return clk.Now().Sub(start)
}
