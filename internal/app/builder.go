package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/npm-sync/internal/api"
	"github.com/stacklok/npm-sync/internal/app/storage"
	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/changelog"
	"github.com/stacklok/npm-sync/internal/changes"
	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/delivery"
	"github.com/stacklok/npm-sync/internal/httpclient"
	"github.com/stacklok/npm-sync/internal/notify"
	"github.com/stacklok/npm-sync/internal/queue"
	"github.com/stacklok/npm-sync/internal/registry"
	"github.com/stacklok/npm-sync/internal/releases"
	"github.com/stacklok/npm-sync/internal/sync"
	"github.com/stacklok/npm-sync/internal/telemetry"
	"github.com/stacklok/npm-sync/internal/vulns"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// retryJitter randomises consumer retry delays by up to 20%
	retryJitter = 0.2
)

// QueueNames lists every queue of the pipeline in start order
var QueueNames = []string{
	config.QueueSync,
	config.QueueBulkSync,
	config.QueueBackfillTick,
	config.QueueChat,
	config.QueueEmail,
}

// errEmailDisabled fails email jobs when no email API is configured
var errEmailDisabled = errors.New("email delivery is not configured")

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig holds the builder inputs. It supports dependency injection
// for testing while providing sensible defaults for production.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	httpClient     httpclient.Client
	clock          clock.Clock

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metrics        *telemetry.Metrics
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		clock:          clock.WallClock,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewSyncApp builds every pipeline component and the control plane server
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	// Create storage factory (single decision point for DB vs File)
	if cfg.storageFactory == nil {
		var factoryOpts []storage.DatabaseFactoryOption
		if cfg.tracerProvider != nil {
			factoryOpts = append(factoryOpts, storage.WithTracer(cfg.tracerProvider.Tracer(storage.TracerName)))
		}
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, factoryOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	if cfg.httpClient == nil {
		cfg.httpClient = httpclient.NewDefaultClient(cfg.config.GetHTTPTimeout())
	}

	cfg.metrics, err = telemetry.NewMetrics(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	components, err := buildPipeline(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &SyncApp{
		config:         cfg.config,
		components:     components,
		storageFactory: cfg.storageFactory,
		httpServer:     httpServer,
		ctx:            appCtx,
		cancelFunc:     cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host, port := parts[0], parts[1]
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithHTTPClient replaces the client used for every upstream call
func WithHTTPClient(c httpclient.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithClock replaces the wall clock (for testing)
func WithClock(clk clock.Clock) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.clock = clk
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for pipeline and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for HTTP and database spans
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildPipeline wires the registry client, index, notification and
// release followups, backfill and one consumer per queue
func buildPipeline(ctx context.Context, b *syncAppConfig) (*AppComponents, error) {
	slog.Info("Initializing pipeline components")

	kv, err := b.storageFactory.CreateKVStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value store: %w", err)
	}
	store, err := b.storageFactory.CreateQueueStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue store: %w", err)
	}
	idx, err := b.storageFactory.CreateIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	enqueuer := newSettingsEnqueuer(b.config, store)
	reg := newRegistryClient(b.config, b.httpClient)

	notifier, err := buildNotifier(ctx, b, enqueuer)
	if err != nil {
		return nil, err
	}

	releaseStore, err := b.storageFactory.CreateReleaseStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create release store: %w", err)
	}
	detector := releases.NewDetector(releaseStore, enqueuer, config.QueueEmail, b.clock)

	orchestrator := backfill.New(kv, reg, enqueuer, backfillConfig(b.config),
		backfill.WithClock(b.clock), backfill.WithMetrics(b.metrics))

	processorOpts := []sync.Option{
		sync.WithNotifier(notifier),
		sync.WithReleaseDetector(detector),
		sync.WithProgressRecorder(orchestrator),
		sync.WithClock(b.clock),
		sync.WithMetrics(b.metrics),
	}
	consumerOpts := []queue.ConsumerOption{queue.WithClock(b.clock), queue.WithMetrics(b.metrics)}
	if b.tracerProvider != nil {
		processorOpts = append(processorOpts, sync.WithTracer(b.tracerProvider.Tracer(sync.TracerName)))
		consumerOpts = append(consumerOpts, queue.WithTracer(b.tracerProvider.Tracer(queue.TracerName)))
	}
	processor := sync.NewProcessor(reg, idx, processorOpts...)

	deliveryHandlers, err := buildDeliveryHandlers(b)
	if err != nil {
		return nil, err
	}

	handlers := map[string]queue.Handler{
		config.QueueSync:         processor.SyncHandler(),
		config.QueueBulkSync:     processor.BulkHandler(),
		config.QueueBackfillTick: orchestrator.TickHandler(),
		config.QueueChat:         deliveryHandlers[config.QueueChat],
		config.QueueEmail:        deliveryHandlers[config.QueueEmail],
	}
	consumers := make([]*queue.Consumer, 0, len(QueueNames))
	for _, name := range QueueNames {
		s := b.config.GetQueueSettings(name)
		consumers = append(consumers, queue.NewConsumer(store, handlers[name], queue.ConsumerConfig{
			Queue:       name,
			Concurrency: s.Concurrency,
			RateMax:     s.RateMax,
			RatePeriod:  s.RatePeriod,
			Backoff:     s.Backoff,
			MaxBackoff:  s.MaxBackoff,
			Jitter:      retryJitter,
			Visibility:  s.Visibility,
			KeepDone:    s.KeepDone,
			KeepFailed:  s.KeepFailed,
		}, consumerOpts...))
	}

	components := &AppComponents{
		Queue:     store,
		Processor: processor,
		Backfill:  orchestrator,
		Consumers: consumers,
	}

	pollerSettings := b.config.GetPollerSettings()
	if pollerSettings.Enabled {
		components.Poller = changes.NewPoller(reg, kv, enqueuer, config.QueueSync, changes.Policy{
			Limit:           pollerSettings.Limit,
			Interval:        pollerSettings.Interval,
			MaxInterval:     pollerSettings.MaxInterval,
			Growth:          pollerSettings.Growth,
			ErrorMultiplier: pollerSettings.ErrorMultiplier,
		}, changes.WithClock(b.clock), changes.WithMetrics(b.metrics))
	} else {
		slog.Info("Change feed polling disabled")
	}

	slog.Info("Pipeline components initialized successfully", "queues", len(consumers))
	return components, nil
}

// NewBackfillController builds a backfill orchestrator over the configured
// storage so backfill runs can be controlled from outside the server process.
// The returned factory must be cleaned up by the caller.
func NewBackfillController(ctx context.Context, cfg *config.Config) (*backfill.Orchestrator, storage.Factory, error) {
	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage factory: %w", err)
	}

	kv, err := factory.CreateKVStore(ctx)
	if err != nil {
		factory.Cleanup()
		return nil, nil, fmt.Errorf("failed to create key-value store: %w", err)
	}
	store, err := factory.CreateQueueStore(ctx)
	if err != nil {
		factory.Cleanup()
		return nil, nil, fmt.Errorf("failed to create queue store: %w", err)
	}

	reg := newRegistryClient(cfg, httpclient.NewDefaultClient(cfg.GetHTTPTimeout()))
	return backfill.New(kv, reg, newSettingsEnqueuer(cfg, store), backfillConfig(cfg)), factory, nil
}

func newSettingsEnqueuer(cfg *config.Config, store queue.Store) *settingsEnqueuer {
	maxAttempts := make(map[string]int, len(QueueNames))
	for _, name := range QueueNames {
		maxAttempts[name] = cfg.GetQueueSettings(name).MaxAttempts
	}
	return &settingsEnqueuer{Store: store, maxAttempts: maxAttempts}
}

func newRegistryClient(cfg *config.Config, client httpclient.Client) *registry.HTTPClient {
	return registry.NewHTTPClient(client, cfg.GetRegistryURL(), cfg.GetReplicateURL(), cfg.GetDownloadsURL())
}

func backfillConfig(cfg *config.Config) backfill.Config {
	s := cfg.GetBackfillSettings()
	return backfill.Config{
		BulkQueue:    config.QueueBulkSync,
		TickQueue:    config.QueueBackfillTick,
		BatchSize:    s.BatchSize,
		ChunkSize:    s.ChunkSize,
		TickInterval: s.TickInterval,
		PageSize:     s.EnumeratePageSize,
	}
}

// buildNotifier wires enrichment sources and the dispatcher
func buildNotifier(ctx context.Context, b *syncAppConfig, enqueuer queue.Enqueuer) (*notify.Notifier, error) {
	stores, err := b.storageFactory.CreateNotificationStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification stores: %w", err)
	}

	token, err := b.config.GetGitHubToken()
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub token: %w", err)
	}

	enricher := notify.NewEnricher(
		vulns.NewOSVClient(b.httpClient, b.config.GetOSVURL()),
		changelog.NewGitHubClient(b.httpClient, b.config.GetGitHubURL(), token),
		b.config.GetChangelogMaxLength(),
	)
	dispatcher := notify.NewDispatcher(
		stores.Followers,
		stores.Notifications,
		enqueuer,
		config.QueueChat,
		config.QueueEmail,
		notify.WithDispatcherClock(b.clock),
		notify.WithDispatcherMetrics(b.metrics),
	)
	return notify.NewNotifier(enricher, dispatcher), nil
}

// buildDeliveryHandlers returns the chat and email queue handlers. Without
// an email API, email jobs fail permanently so they stay inspectable.
func buildDeliveryHandlers(b *syncAppConfig) (map[string]queue.Handler, error) {
	handlers := map[string]queue.Handler{}

	emailCfg := b.config.Notifications.Email
	appURL := ""
	if emailCfg != nil {
		appURL = emailCfg.AppURL
	}
	handlers[config.QueueChat] = delivery.NewChatDeliverer(b.httpClient, appURL).Handler()

	if emailCfg == nil {
		slog.Warn("Email delivery is not configured; email jobs will fail")
		handlers[config.QueueEmail] = func(_ context.Context, _ *queue.Job) error {
			return backoff.Permanent(errEmailDisabled)
		}
		return handlers, nil
	}

	apiKey, err := emailCfg.GetEmailAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read email API key: %w", err)
	}
	handlers[config.QueueEmail] = delivery.NewEmailDeliverer(b.httpClient, delivery.EmailConfig{
		Endpoint: emailCfg.Endpoint,
		From:     emailCfg.From,
		APIKey:   apiKey,
		AppURL:   emailCfg.AppURL,
	}).Handler()
	return handlers, nil
}

// buildHTTPServer builds the control plane server with router and middleware
func buildHTTPServer(b *syncAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so it observes every request
	if b.meterProvider != nil || b.tracerProvider != nil {
		telemetryMiddleware, err := telemetry.HTTPMiddleware(b.tracerProvider, b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create telemetry middleware: %w", err)
		}
		b.middlewares = append([]func(http.Handler) http.Handler{telemetryMiddleware}, b.middlewares...)
		slog.Info("HTTP telemetry middleware enabled")
	}

	router := api.NewServer(c.Backfill, c.Queue, QueueNames,
		api.WithMiddlewares(b.middlewares...),
		api.WithReadinessCheck(b.storageFactory.CheckReadiness),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
