package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/npm-sync/internal/index"
	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/otel"
	"github.com/stacklok/npm-sync/internal/registry"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

// BulkResult counts the outcome of one bulk chunk
type BulkResult struct {
	Synced  int
	Skipped int
	Failed  int
}

// ProcessBulk syncs a chunk of packages without notifications. Packages that
// fail individually are counted; only a failed index write fails the job.
func (p *Processor) ProcessBulk(ctx context.Context, job jobs.BulkSyncJob) (BulkResult, error) {
	ctx, span := otel.StartSpan(ctx, p.tracer, "sync.ProcessBulk", trace.WithAttributes(
		otel.AttrBatchSize.Int(len(job.PackageNames)),
		otel.AttrBatchOffset.Int(job.Offset),
	))
	defer span.End()

	result, err := p.processBulk(ctx, job)
	otel.RecordError(span, err)
	return result, err
}

func (p *Processor) processBulk(ctx context.Context, job jobs.BulkSyncJob) (BulkResult, error) {
	start := p.clock.Now()
	logger := p.logger.With("offset", job.Offset, "packages", len(job.PackageNames))

	downloads := p.bulkDownloads(ctx, job.PackageNames)

	var (
		result BulkResult
		docs   = make([]index.Document, 0, len(job.PackageNames))
	)
	now := p.clock.Now()
	for _, name := range job.PackageNames {
		packument, err := p.registry.Packument(ctx, name)
		if errors.Is(err, registry.ErrNotFound) {
			result.Skipped++
			continue
		}
		if err != nil {
			logger.Warn("Failed to fetch packument", "package", name, "error", err)
			result.Failed++
			continue
		}
		docs = append(docs, index.FromPackument(packument, downloads[name], now))
	}

	if len(docs) > 0 {
		if err := p.index.Upsert(ctx, docs); err != nil {
			p.metrics.RecordSync(ctx, kindBulk, telemetry.OutcomeFailed, since(p.clock, start))
			return BulkResult{}, fmt.Errorf("failed to upsert bulk chunk at offset %d: %w", job.Offset, err)
		}
	}
	result.Synced = len(docs)
	p.metrics.RecordSync(ctx, kindBulk, telemetry.OutcomeSynced, since(p.clock, start))

	if p.progress != nil {
		if err := p.progress.RecordProgress(ctx, job.Phase, result.Synced, result.Failed); err != nil {
			logger.Warn("Failed to record backfill progress", "error", err)
		}
	}

	logger.Info("Bulk sync chunk processed",
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// bulkDownloads fetches weekly downloads for names. Unscoped names go
// through the bulk endpoint, scoped names one at a time. Failures leave the
// count at zero; the next incremental sync corrects it.
func (p *Processor) bulkDownloads(ctx context.Context, names []string) map[string]int64 {
	counts := make(map[string]int64, len(names))
	var unscoped []string
	for _, name := range names {
		if strings.HasPrefix(name, "@") {
			n, err := p.registry.WeeklyDownloads(ctx, name)
			if err != nil && !errors.Is(err, registry.ErrNotFound) {
				p.logger.Debug("Failed to fetch downloads", "package", name, "error", err)
			}
			counts[name] = n
			continue
		}
		unscoped = append(unscoped, name)
	}

	for chunk := range chunks(unscoped, registry.MaxBulkDownloads) {
		bulk, err := p.registry.BulkWeeklyDownloads(ctx, chunk)
		if err != nil {
			p.logger.Warn("Failed to fetch bulk downloads", "packages", len(chunk), "error", err)
			continue
		}
		for name, n := range bulk {
			counts[name] = n
		}
	}
	return counts
}

// chunks yields consecutive slices of at most size elements
func chunks[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			if !yield(items[start:min(start+size, len(items))]) {
				return
			}
		}
	}
}
