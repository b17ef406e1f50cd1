package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/npm-sync/internal/app/storage/mocks"
	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/queue"
	queuemocks "github.com/stacklok/npm-sync/internal/queue/mocks"
)

func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()
	disabled := false
	return &config.Config{
		Changes:     config.ChangesConfig{Enabled: &disabled},
		FileStorage: &config.FileStorageConfig{BaseDir: t.TempDir()},
	}
}

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig(t)))
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.NotNil(t, built.clock)
}

func TestBaseConfig_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := baseConfig(WithAddress(":9090"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":9090"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ipv4 host", addr: "10.0.0.1:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "non numeric port", addr: ":http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &syncAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	mw := func(next http.Handler) http.Handler { return next }
	built, err := baseConfig(WithConfig(createValidTestConfig(t)), WithMiddlewares(mw, mw))
	require.NoError(t, err)
	assert.Len(t, built.middlewares, 2)
}

func TestNewSyncApp_WiresEveryQueue(t *testing.T) {
	t.Parallel()

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithAddress(":0"),
		WithMeterProvider(noop.NewMeterProvider()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	components := app.GetComponents()
	require.Len(t, components.Consumers, len(QueueNames))
	for i, consumer := range components.Consumers {
		assert.Equal(t, QueueNames[i], consumer.Queue())
	}
	assert.Nil(t, components.Poller, "polling is disabled in the test config")
	assert.NotNil(t, components.Backfill)
	assert.NotNil(t, components.Processor)
	assert.Len(t, components.workers(), len(QueueNames))
}

func TestNewSyncApp_PollerEnabledByDefault(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig(t)
	cfg.Changes.Enabled = nil

	app, err := NewSyncApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.NotNil(t, app.GetComponents().Poller)
	assert.Len(t, app.GetComponents().workers(), len(QueueNames)+1)
}

func TestNewSyncApp_StorageFailureCleansUp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := mocks.NewMockFactory(ctrl)
	factory.EXPECT().CreateKVStore(gomock.Any()).Return(nil, errors.New("disk full"))
	factory.EXPECT().Cleanup()

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithStorageFactory(factory),
	)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "disk full")
}

func TestNewSyncApp_UnreadableSecretFails(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig(t)
	cfg.Notifications.GitHubTokenFile = "/does/not/exist"

	_, err := NewSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read GitHub token")
}

func TestBuildDeliveryHandlers_EmailDisabled(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig(t)))
	require.NoError(t, err)

	handlers, err := buildDeliveryHandlers(built)
	require.NoError(t, err)
	require.Contains(t, handlers, config.QueueChat)
	require.Contains(t, handlers, config.QueueEmail)

	err = handlers[config.QueueEmail](context.Background(), &queue.Job{Queue: config.QueueEmail})
	require.ErrorIs(t, err, errEmailDisabled)
	var permanent *backoff.PermanentError
	assert.ErrorAs(t, err, &permanent)
}

func TestSettingsEnqueuer_AppliesMaxAttempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := queue.NewMemoryStore(nil)
	enq := &settingsEnqueuer{Store: store, maxAttempts: map[string]int{"sync": 9}}

	_, err := enq.Enqueue(ctx, "sync", []byte(`{}`), queue.EnqueueOptions{})
	require.NoError(t, err)
	_, err = enq.Enqueue(ctx, "email-delivery", []byte(`{}`), queue.EnqueueOptions{MaxAttempts: 2})
	require.NoError(t, err)

	job, err := store.Claim(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 9, job.MaxAttempts)

	job, err = store.Claim(ctx, "email-delivery", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.MaxAttempts)
}

func TestSettingsEnqueuer_KeepsOtherOptions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := queuemocks.NewMockStore(ctrl)
	enq := newSettingsEnqueuer(createValidTestConfig(t), store)

	want := queue.EnqueueOptions{
		Key:         "sync:left-pad",
		Priority:    3,
		MaxAttempts: enq.maxAttempts[config.QueueSync],
	}
	store.EXPECT().Enqueue(gomock.Any(), config.QueueSync, []byte(`{}`), want).Return(queue.Duplicate, nil)

	res, err := enq.Enqueue(context.Background(), config.QueueSync, []byte(`{}`), queue.EnqueueOptions{
		Key:      "sync:left-pad",
		Priority: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, queue.Duplicate, res)
	assert.Positive(t, want.MaxAttempts)
}
