package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMeterName is the meter used for all pipeline instruments
const PipelineMeterName = "github.com/stacklok/npm-sync/pipeline"

// Outcome labels shared by the pipeline instruments
const (
	OutcomeSynced    = "synced"
	OutcomeDeleted   = "deleted"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeReleased  = "released"
	OutcomeNotified  = "notified"
)

// Metrics holds the pipeline instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	syncDuration   metric.Float64Histogram
	syncTotal      metric.Int64Counter
	jobsTotal      metric.Int64Counter
	notifications  metric.Int64Counter
	changeEvents   metric.Int64Counter
	backfillOffset metric.Int64Gauge
}

// NewMetrics creates the pipeline instruments. A nil provider yields nil metrics.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(PipelineMeterName)

	syncDuration, err := meter.Float64Histogram(
		"npm_sync_package_sync_duration_seconds",
		metric.WithDescription("Duration of package sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}
	syncTotal, err := meter.Int64Counter(
		"npm_sync_package_syncs_total",
		metric.WithDescription("Number of package syncs by outcome"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		return nil, err
	}
	jobsTotal, err := meter.Int64Counter(
		"npm_sync_queue_jobs_total",
		metric.WithDescription("Number of processed queue jobs by queue and outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter(
		"npm_sync_notifications_total",
		metric.WithDescription("Number of notification decisions by outcome"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}
	changeEvents, err := meter.Int64Counter(
		"npm_sync_change_events_total",
		metric.WithDescription("Number of change feed events enqueued"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	backfillOffset, err := meter.Int64Gauge(
		"npm_sync_backfill_offset",
		metric.WithDescription("Current backfill offset"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncDuration:   syncDuration,
		syncTotal:      syncTotal,
		jobsTotal:      jobsTotal,
		notifications:  notifications,
		changeEvents:   changeEvents,
		backfillOffset: backfillOffset,
	}, nil
}

// RecordSync records one package sync. kind is "sync" or "bulk".
func (m *Metrics) RecordSync(ctx context.Context, kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.syncDuration.Record(ctx, duration.Seconds(), attrs)
	m.syncTotal.Add(ctx, 1, attrs)
}

// RecordJob records the outcome of one queue job attempt
func (m *Metrics) RecordJob(ctx context.Context, queue, outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
}

// RecordNotifications records a dispatch result
func (m *Metrics) RecordNotifications(ctx context.Context, notified, skipped int) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, int64(notified), metric.WithAttributes(attribute.String("outcome", OutcomeNotified)))
	m.notifications.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("outcome", OutcomeSkipped)))
}

// RecordChangeEvents records events taken from the change feed
func (m *Metrics) RecordChangeEvents(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.changeEvents.Add(ctx, int64(n))
}

// RecordBackfillOffset records the backfill position
func (m *Metrics) RecordBackfillOffset(ctx context.Context, offset, total int) {
	if m == nil {
		return
	}
	m.backfillOffset.Record(ctx, int64(offset), metric.WithAttributes(attribute.Int("total", total)))
}
