package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/juju/clock"

	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/index"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/releases"
)

// FileFactory creates single-process storage components.
// Sync state survives restarts on the local filesystem; the queue, index and
// notification data live in memory.
type FileFactory struct {
	baseDir string

	// File-mode dependencies (created once, shared by all components)
	kv       *kvstore.FileStore
	queue    *queue.MemoryStore
	index    *index.MemoryIndex
	notify   *notify.MemoryStore
	releases *releases.MemoryStore
}

var _ Factory = (*FileFactory)(nil)

// FileFactoryOption is a functional option for configuring the FileFactory
type FileFactoryOption func(*fileFactoryOptions)

type fileFactoryOptions struct {
	clock clock.Clock
}

// WithQueueClock sets the clock used by the in-memory queue
func WithQueueClock(clk clock.Clock) FileFactoryOption {
	return func(o *fileFactoryOptions) {
		o.clock = clk
	}
}

// NewFileFactory creates a new file-based storage factory,
// ensuring the base directory exists.
func NewFileFactory(cfg *config.Config, opts ...FileFactoryOption) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &fileFactoryOptions{clock: clock.WallClock}
	for _, opt := range opts {
		opt(o)
	}

	// Use config's file storage base directory (defaults to "./data")
	baseDir := cfg.GetFileStorageBaseDir()
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}

	slog.Info("Creating file-based storage factory", "base_dir", baseDir)

	return &FileFactory{
		baseDir:  baseDir,
		kv:       kvstore.NewFileStore(filepath.Join(baseDir, "kv")),
		queue:    queue.NewMemoryStore(o.clock),
		index:    index.NewMemoryIndex(),
		notify:   notify.NewMemoryStore(),
		releases: releases.NewMemoryStore(),
	}, nil
}

// CreateKVStore returns the file-backed key-value store
func (f *FileFactory) CreateKVStore(_ context.Context) (kvstore.Store, error) {
	return f.kv, nil
}

// CreateQueueStore returns the in-memory queue shared by producers and consumers
func (f *FileFactory) CreateQueueStore(_ context.Context) (queue.Store, error) {
	return f.queue, nil
}

// CreateIndex returns the in-memory search index
func (f *FileFactory) CreateIndex(_ context.Context) (index.Index, error) {
	return f.index, nil
}

// CreateNotificationStores returns the in-memory follower and notification stores
func (f *FileFactory) CreateNotificationStores(_ context.Context) (NotificationStores, error) {
	return NotificationStores{Followers: f.notify, Notifications: f.notify}, nil
}

// CreateReleaseStore returns the in-memory upcoming release store
func (f *FileFactory) CreateReleaseStore(_ context.Context) (releases.Store, error) {
	return f.releases, nil
}

// CheckReadiness verifies the base directory is still present
func (f *FileFactory) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(f.baseDir)
	if err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", f.baseDir)
	}
	return nil
}

// Cleanup releases resources held by the file factory.
func (f *FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory")
	if err := f.queue.Close(); err != nil {
		slog.Warn("Failed to close in-memory queue", "error", err)
	}
}
