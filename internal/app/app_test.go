package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/internal/app/storage"
	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/config"
	"github.com/stacklok/npm-sync/internal/index"
)

const leftPadPackument = `{
  "name": "left-pad",
  "description": "String left pad",
  "dist-tags": {"latest": "1.3.0"},
  "time": {"modified": "2022-06-19T11:49:59.000Z", "1.3.0": "2018-04-09T01:00:00.000Z"},
  "versions": {"1.3.0": {"name": "left-pad", "version": "1.3.0"}}
}`

// newFakeNPM serves the change feed, packument and download endpoints for a
// registry holding only left-pad
func newFakeNPM(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"update_seq": "1"}`))
		case r.URL.Path == "/_changes":
			if r.URL.Query().Get("since") == "0" {
				_, _ = w.Write([]byte(`{"results": [{"seq": "1", "id": "left-pad"}], "last_seq": "1"}`))
				return
			}
			_, _ = w.Write([]byte(`{"results": [], "last_seq": "1"}`))
		case r.URL.Path == "/left-pad":
			_, _ = w.Write([]byte(leftPadPackument))
		case strings.HasPrefix(r.URL.Path, "/downloads/point/last-week/"):
			_, _ = w.Write([]byte(`{"downloads": 42, "package": "left-pad"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// freeAddress reserves and releases a local port
func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func createTestApp(t *testing.T, upstream string) (*SyncApp, *storage.FileFactory) {
	t.Helper()

	disabled := false
	cfg := &config.Config{
		Registry: config.RegistryConfig{
			URL:          upstream,
			ReplicateURL: upstream,
			DownloadsURL: upstream,
		},
		Changes:     config.ChangesConfig{Enabled: &disabled},
		FileStorage: &config.FileStorageConfig{BaseDir: t.TempDir()},
	}
	factory, err := storage.NewFileFactory(cfg)
	require.NoError(t, err)

	app, err := NewSyncApp(context.Background(),
		WithConfig(cfg),
		WithAddress(freeAddress(t)),
		WithStorageFactory(factory),
	)
	require.NoError(t, err)
	return app, factory
}

func startApp(t *testing.T, app *SyncApp) <-chan error {
	t.Helper()
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	url := "http://" + app.GetHTTPServer().Addr + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec // test server address
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	return errChan
}

func TestSyncApp_BackfillEndToEnd(t *testing.T) {
	t.Parallel()

	upstream := newFakeNPM(t)
	app, factory := createTestApp(t, upstream.URL)
	errChan := startApp(t, app)

	base := "http://" + app.GetHTTPServer().Addr + "/api/v1"
	resp, err := http.Post(base+"/backfill/start", "application/json", nil) //nolint:gosec // test server address
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	idx, err := factory.CreateIndex(context.Background())
	require.NoError(t, err)
	var doc *index.Document
	require.Eventually(t, func() bool {
		doc, err = idx.Get(context.Background(), "left-pad")
		return err == nil && doc != nil
	}, 15*time.Second, 50*time.Millisecond)
	assert.Equal(t, "1.3.0", doc.Version)
	assert.Equal(t, int64(42), doc.WeeklyDownloads)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/backfill") //nolint:gosec // test server address
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var s backfill.State
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return false
		}
		return s.Status == backfill.StatusCompleted
	}, 15*time.Second, 50*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))
	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestSyncApp_ReadinessAndQueues(t *testing.T) {
	t.Parallel()

	app, _ := createTestApp(t, newFakeNPM(t).URL)
	errChan := startApp(t, app)

	base := "http://" + app.GetHTTPServer().Addr
	resp, err := http.Get(base + "/readiness") //nolint:gosec // test server address
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, name := range QueueNames {
		resp, err := http.Get(base + "/api/v1/queues/" + name) //nolint:gosec // test server address
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
	}

	resp, err = http.Get(base + "/api/v1/queues/unknown") //nolint:gosec // test server address
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, app.Stop(5*time.Second))
	require.NoError(t, <-errChan)
}

func TestSyncApp_StopWithoutStart(t *testing.T) {
	t.Parallel()

	app, _ := createTestApp(t, newFakeNPM(t).URL)
	require.NoError(t, app.Stop(time.Second))
	// a second stop must not panic
	_ = app.Stop(time.Second)
}

func TestSyncApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	app, _ := createTestApp(t, newFakeNPM(t).URL)
	app.GetHTTPServer().Addr = listener.Addr().String()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case startErr := <-errChan:
		require.Error(t, startErr)
		assert.Contains(t, startErr.Error(), "HTTP server failed")
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not fail on an occupied address")
	}
	require.NoError(t, app.Stop(5*time.Second))
}

func TestSyncApp_GetConfig(t *testing.T) {
	t.Parallel()

	app, _ := createTestApp(t, newFakeNPM(t).URL)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	cfg := app.GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, config.StorageTypeFile, cfg.GetStorageType())
}
