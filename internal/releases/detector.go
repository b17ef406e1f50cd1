package releases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juju/clock"

	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/queue"
)

// TemplateReleaseLaunched is the email template of a launch notification
const TemplateReleaseLaunched = "release-launched"

// Detector matches published versions against upcoming releases
type Detector struct {
	store      Store
	enqueuer   queue.Enqueuer
	emailQueue string
	clock      clock.Clock
	logger     *slog.Logger
}

// NewDetector creates a detector that enqueues launch emails on emailQueue.
// A nil clock means the wall clock.
func NewDetector(store Store, enqueuer queue.Enqueuer, emailQueue string, clk clock.Clock) *Detector {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Detector{
		store:      store,
		enqueuer:   enqueuer,
		emailQueue: emailQueue,
		clock:      clk,
		logger:     slog.With("component", "release-detector"),
	}
}

// CheckAndDispatch launches every pending release of packageName matched by
// newVersion and returns how many were launched. Only the call that performs
// the released transition sends emails, so repeated checks are no-ops.
func (d *Detector) CheckAndDispatch(ctx context.Context, packageName, newVersion string) (int, error) {
	pending, err := d.store.PendingForPackage(ctx, packageName)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming releases of %s: %w", packageName, err)
	}

	launched := 0
	for _, r := range pending {
		if !Matches(r, newVersion) {
			continue
		}
		performed, err := d.store.MarkReleased(ctx, r.ID, newVersion, d.clock.Now())
		if err != nil {
			d.logger.Error("Failed to mark release as released", "release_id", r.ID, "error", err)
			continue
		}
		if !performed {
			continue
		}
		launched++
		d.notify(ctx, r, packageName, newVersion)
	}
	return launched, nil
}

func (d *Detector) notify(ctx context.Context, r UpcomingRelease, packageName, version string) {
	logger := d.logger.With("release_id", r.ID, "package", packageName, "version", version)

	direct, err := d.store.ReleaseFollowers(ctx, r.ID)
	if err != nil {
		logger.Error("Failed to list release followers", "error", err)
	}
	viaPackage, err := d.store.PackageFollowers(ctx, packageName)
	if err != nil {
		logger.Error("Failed to list package followers", "error", err)
	}

	recipients := mergeRecipients(direct, viaPackage)
	for _, rcpt := range recipients {
		if rcpt.Email == "" {
			continue
		}
		job := jobs.EmailJob{
			To:       rcpt.Email,
			UserID:   rcpt.UserID,
			Template: TemplateReleaseLaunched,
			Props: map[string]string{
				"releaseTitle":  r.Title,
				"packageName":   packageName,
				"version":       version,
				"targetVersion": r.TargetVersion,
			},
			Key: jobs.ReleaseKey(rcpt.UserID, r.ID),
		}
		if _, err := jobs.Enqueue(ctx, d.enqueuer, d.emailQueue, job, queue.EnqueueOptions{}); err != nil {
			logger.Error("Failed to enqueue release email", "user_id", rcpt.UserID, "error", err)
		}
	}
	logger.Info("Upcoming release launched", "recipients", len(recipients))
}
