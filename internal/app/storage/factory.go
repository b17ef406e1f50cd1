// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern to ensure related components (key-value
// store, job queue, search index, notification and release stores) are created with
// compatible storage backends.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/index"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/releases"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// NotificationStores groups the two notification store roles, which are
// always served by the same backend
type NotificationStores struct {
	Followers     notify.FollowerStore
	Notifications notify.NotificationStore
}

// Factory creates storage-dependent components as a family.
// Implementations ensure all components are compatible with each other
// (e.g., all use database or all use file storage).
//
// Every Create method returns the same instance on repeated calls, so the
// producers and consumers of a process share one queue and one store.
type Factory interface {
	// CreateKVStore creates the store holding the change feed cursor and backfill state
	CreateKVStore(ctx context.Context) (kvstore.Store, error)

	// CreateQueueStore creates the durable job queue backend
	CreateQueueStore(ctx context.Context) (queue.Store, error)

	// CreateIndex creates the search index client
	CreateIndex(ctx context.Context) (index.Index, error)

	// CreateNotificationStores creates the follower and notification stores
	CreateNotificationStores(ctx context.Context) (NotificationStores, error)

	// CreateReleaseStore creates the upcoming release store
	CreateReleaseStore(ctx context.Context) (releases.Store, error)

	// CheckReadiness reports whether the backing storage is reachable
	CheckReadiness(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
// Returns a FileFactory for file-based storage or a DatabaseFactory for database storage.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageTypeFile:
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
