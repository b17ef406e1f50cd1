package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/stacklok/npm-sync/internal/jobs"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_stores.go -package=mocks -source=dispatcher.go FollowerStore,NotificationStore

// Email templates
const (
	TemplateSecurityUpdate = "security-update"
	TemplatePackageUpdate  = "package-update"
)

// Preferences are a user's notification settings
type Preferences struct {
	NotifyAllUpdates       bool `json:"notifyAllUpdates"`
	NotifySecurityOnly     bool `json:"notifySecurityOnly"`
	NotifyMajorOnly        bool `json:"notifyMajorOnly"`
	InAppEnabled           bool `json:"inAppEnabled"`
	EmailImmediateCritical bool `json:"emailImmediateCritical"`
}

// Follower is a user following a package
type Follower struct {
	UserID      string
	Email       string
	Preferences Preferences
	// ChatWebhookURL is set when the user has a chat integration
	ChatWebhookURL string
}

// Record is a persisted in-app notification
type Record struct {
	UserID               string    `json:"userId"`
	PackageName          string    `json:"packageName"`
	NewVersion           string    `json:"newVersion"`
	PreviousVersion      string    `json:"previousVersion"`
	Severity             Severity  `json:"severity"`
	IsSecurityUpdate     bool      `json:"isSecurityUpdate"`
	IsBreakingChange     bool      `json:"isBreakingChange"`
	ChangelogExcerpt     string    `json:"changelogExcerpt,omitempty"`
	VulnerabilitiesFixed int       `json:"vulnerabilitiesFixed"`
	Read                 bool      `json:"read"`
	CreatedAt            time.Time `json:"createdAt"`
}

// FollowerStore lists the followers of a package with their preferences
type FollowerStore interface {
	ListFollowers(ctx context.Context, packageName string) ([]Follower, error)
}

// NotificationStore persists in-app notifications. Inserting the same
// user, package and version twice stores one record.
type NotificationStore interface {
	InsertNotification(ctx context.Context, r Record) error
}

// DispatchResult counts the followers that were and were not notified
type DispatchResult struct {
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
}

// ShouldNotify applies a user's preferences to an update
func ShouldNotify(p Preferences, e Enrichment) bool {
	return p.NotifyAllUpdates ||
		(p.NotifySecurityOnly && e.SecurityDelta.IsSecurityUpdate) ||
		(p.NotifyMajorOnly && e.Severity != SeverityInfo)
}

// Dispatcher fans an enriched update out to the package's followers
type Dispatcher struct {
	followers     FollowerStore
	notifications NotificationStore
	enqueuer      queue.Enqueuer
	chatQueue     string
	emailQueue    string
	clock         clock.Clock
	metrics       *telemetry.Metrics
	logger        *slog.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock replaces the wall clock
func WithDispatcherClock(clk clock.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = clk
	}
}

// WithDispatcherMetrics records dispatch results
func WithDispatcherMetrics(m *telemetry.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher that enqueues deliveries on the chat and email queues
func NewDispatcher(
	followers FollowerStore,
	notifications NotificationStore,
	enqueuer queue.Enqueuer,
	chatQueue, emailQueue string,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		followers:     followers,
		notifications: notifications,
		enqueuer:      enqueuer,
		chatQueue:     chatQueue,
		emailQueue:    emailQueue,
		clock:         clock.WallClock,
		logger:        slog.With("component", "notification-dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch notifies every follower whose preferences match. Channel failures
// are logged per user and channel and never stop the loop; only a failed
// follower lookup is returned.
func (d *Dispatcher) Dispatch(
	ctx context.Context, packageName string, e Enrichment, previousVersion, newVersion string,
) (DispatchResult, error) {
	followers, err := d.followers.ListFollowers(ctx, packageName)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to list followers of %s: %w", packageName, err)
	}

	var result DispatchResult
	for _, f := range followers {
		if !ShouldNotify(f.Preferences, e) {
			result.Skipped++
			continue
		}
		result.Notified++
		d.deliver(ctx, f, packageName, e, previousVersion, newVersion)
	}

	d.metrics.RecordNotifications(ctx, result.Notified, result.Skipped)
	d.logger.Info("Dispatched update notifications",
		"package", packageName,
		"version", newVersion,
		"severity", e.Severity,
		"notified", result.Notified,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, f Follower, packageName string, e Enrichment, previousVersion, newVersion string) {
	logger := d.logger.With("user_id", f.UserID, "package", packageName, "version", newVersion)

	if f.Preferences.InAppEnabled {
		err := d.notifications.InsertNotification(ctx, Record{
			UserID:               f.UserID,
			PackageName:          packageName,
			NewVersion:           newVersion,
			PreviousVersion:      previousVersion,
			Severity:             e.Severity,
			IsSecurityUpdate:     e.SecurityDelta.IsSecurityUpdate,
			IsBreakingChange:     e.VersionDelta.IsBreakingChange,
			ChangelogExcerpt:     e.ChangelogExcerpt,
			VulnerabilitiesFixed: e.SecurityDelta.FixedCount,
			CreatedAt:            d.clock.Now(),
		})
		if err != nil {
			logger.Error("Failed to store in-app notification", "error", err)
		}
	}

	props := updateProps(packageName, e, previousVersion, newVersion)

	if f.ChatWebhookURL != "" {
		job := jobs.ChatJob{
			UserID:     f.UserID,
			WebhookURL: f.ChatWebhookURL,
			Template:   TemplatePackageUpdate,
			Props:      props,
			Key:        jobs.ChatKey(f.UserID, packageName, newVersion),
		}
		if _, err := jobs.Enqueue(ctx, d.enqueuer, d.chatQueue, job, queue.EnqueueOptions{}); err != nil {
			logger.Error("Failed to enqueue chat notification", "error", err)
		}
	}

	if f.Preferences.EmailImmediateCritical && e.Severity == SeverityCritical && f.Email != "" {
		job := jobs.EmailJob{
			To:       f.Email,
			UserID:   f.UserID,
			Template: TemplateSecurityUpdate,
			Props:    props,
			Key:      jobs.EmailKey(f.UserID, packageName, newVersion),
		}
		if _, err := jobs.Enqueue(ctx, d.enqueuer, d.emailQueue, job, queue.EnqueueOptions{Priority: 10}); err != nil {
			logger.Error("Failed to enqueue critical email", "error", err)
		}
	}
}

func updateProps(packageName string, e Enrichment, previousVersion, newVersion string) map[string]string {
	props := map[string]string{
		"packageName":     packageName,
		"previousVersion": previousVersion,
		"newVersion":      newVersion,
		"severity":        string(e.Severity),
		"diffKind":        string(e.VersionDelta.DiffKind),
	}
	if e.SecurityDelta.FixedCount > 0 {
		props["vulnerabilitiesFixed"] = fmt.Sprint(e.SecurityDelta.FixedCount)
	}
	if e.ChangelogExcerpt != "" {
		props["changelog"] = e.ChangelogExcerpt
	}
	return props
}
