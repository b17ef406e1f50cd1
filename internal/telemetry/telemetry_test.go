package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "disabled ignores bad sampling", config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}},
		{name: "valid sampling", config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}}},
		{name: "sampling out of range", config: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, "npm-sync", cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
}

func TestNew_DisabledUsesNoopProviders(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), WithTelemetryConfig(&Config{Enabled: false}))
	require.NoError(t, err)
	require.NotNil(t, tel.MeterProvider())
	require.NotNil(t, tel.TracerProvider())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSync(ctx, "sync", OutcomeSynced, 150*time.Millisecond)
	m.RecordSync(ctx, "sync", OutcomeSkipped, 10*time.Millisecond)
	m.RecordJob(ctx, "sync", OutcomeCompleted)
	m.RecordNotifications(ctx, 3, 2)
	m.RecordChangeEvents(ctx, 7)
	m.RecordBackfillOffset(ctx, 500, 120000)

	data := collect(t, reader)

	syncs, ok := data["npm_sync_package_syncs_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, syncs.DataPoints, 2)

	events, ok := data["npm_sync_change_events_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, events.DataPoints, 1)
	assert.Equal(t, int64(7), events.DataPoints[0].Value)

	offset, ok := data["npm_sync_backfill_offset"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, offset.DataPoints, 1)
	assert.Equal(t, int64(500), offset.DataPoints[0].Value)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	ctx := context.Background()
	m.RecordSync(ctx, "bulk", OutcomeFailed, time.Second)
	m.RecordJob(ctx, "sync", OutcomeRetried)
	m.RecordNotifications(ctx, 1, 1)
	m.RecordChangeEvents(ctx, 1)
	m.RecordBackfillOffset(ctx, 1, 1)
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	mw, err := HTTPMiddleware(nil, provider)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(mw)
	router.Get("/api/v1/queues/{queue}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queues/sync", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	data := collect(t, reader)
	hist, ok := data["npm_sync_http_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	route, ok := hist.DataPoints[0].Attributes.Value("route")
	require.True(t, ok)
	assert.Equal(t, "/api/v1/queues/{queue}", route.AsString())
}

func TestHTTPMiddleware_PassThrough(t *testing.T) {
	t.Parallel()

	mw, err := HTTPMiddleware(nil, nil)
	require.NoError(t, err)

	called := false
	handler := mw(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
}
