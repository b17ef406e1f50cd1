package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/index"
	"github.com/stacklok/npm-sync/internal/kvstore"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/releases"
)

// DatabaseFactory creates database-backed storage components.
// All components created by this factory share one PostgreSQL connection pool.
type DatabaseFactory struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer

	kv       *kvstore.PostgresStore
	queue    *queue.PostgresStore
	index    *index.PostgresIndex
	notify   *notify.PostgresStore
	releases *releases.PostgresStore
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithTracer records a span for every query issued through the pool.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.tracer = tracer
	}
}

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	factory := &DatabaseFactory{}
	for _, opt := range opts {
		opt(factory)
	}

	slog.Info("Creating database-backed storage factory")

	poolConfig, err := buildPoolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	if factory.tracer != nil {
		poolConfig.ConnConfig.Tracer = newQueryTracer(factory.tracer)
		slog.Debug("Database query tracing enabled")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	slog.Info("Database connection pool created successfully")

	factory.pool = pool
	factory.kv = kvstore.NewPostgresStore(pool)
	factory.queue = queue.NewPostgresStore(pool)
	factory.index = index.NewPostgresIndex(pool)
	factory.notify = notify.NewPostgresStore(pool)
	factory.releases = releases.NewPostgresStore(pool)
	return factory, nil
}

// CreateKVStore returns the PostgreSQL key-value store
func (d *DatabaseFactory) CreateKVStore(_ context.Context) (kvstore.Store, error) {
	return d.kv, nil
}

// CreateQueueStore returns the PostgreSQL job queue
func (d *DatabaseFactory) CreateQueueStore(_ context.Context) (queue.Store, error) {
	return d.queue, nil
}

// CreateIndex returns the PostgreSQL full-text search index
func (d *DatabaseFactory) CreateIndex(_ context.Context) (index.Index, error) {
	return d.index, nil
}

// CreateNotificationStores returns the PostgreSQL follower and notification stores
func (d *DatabaseFactory) CreateNotificationStores(_ context.Context) (NotificationStores, error) {
	return NotificationStores{Followers: d.notify, Notifications: d.notify}, nil
}

// CreateReleaseStore returns the PostgreSQL upcoming release store
func (d *DatabaseFactory) CreateReleaseStore(_ context.Context) (releases.Store, error) {
	return d.releases, nil
}

// CheckReadiness pings the database
func (d *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

// buildPoolConfig parses the connection string and applies the pool settings
func buildPoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build database connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}
	return poolConfig, nil
}
