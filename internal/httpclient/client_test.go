package httpclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled so that
// closing one server does not disturb parallel tests sharing the transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	var userAgent, accept string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"name":"left-pad"}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(5 * time.Second)
	body, err := client.Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"left-pad"}`, string(body))
	assert.Equal(t, httpclient.UserAgent, userAgent)
	assert.Equal(t, "application/json", accept)
}

func TestDefaultClient_Get_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		retryAfter string
		wantRetry  time.Duration
		notFound   bool
		permanent  bool
		temporary  bool
	}{
		{name: "not found", statusCode: http.StatusNotFound, notFound: true, permanent: true},
		{name: "bad request", statusCode: http.StatusBadRequest, permanent: true},
		{name: "rate limited with hint", statusCode: http.StatusTooManyRequests, retryAfter: "7", wantRetry: 7 * time.Second, temporary: true},
		{name: "server error", statusCode: http.StatusBadGateway, temporary: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(5 * time.Second)
			_, err := client.Get(context.Background(), server.URL)
			require.Error(t, err)

			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			assert.Equal(t, server.URL, httpErr.URL)
			assert.Equal(t, tt.wantRetry, httpErr.RetryAfter())
			assert.Equal(t, tt.notFound, httpclient.IsNotFound(err))
			assert.Equal(t, tt.permanent, httpclient.IsPermanent(err))
			assert.Equal(t, tt.temporary, httpErr.Temporary())
		})
	}
}

func TestDefaultClient_PostJSON(t *testing.T) {
	t.Parallel()

	var gotBody, gotAuth, gotContentType string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	header := http.Header{}
	header.Set("Authorization", "Bearer key")

	body, err := client.PostJSON(context.Background(), server.URL, map[string]string{"text": "hi"}, header)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(body))
	assert.JSONEq(t, `{"text":"hi"}`, gotBody)
	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestDefaultClient_Do_OverridesAccept(t *testing.T) {
	t.Parallel()

	var accept string
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")

	_, err := client.Do(context.Background(), httpclient.Request{Method: http.MethodGet, URL: server.URL, Header: header})
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.github+json", accept)
}

func TestDefaultClient_Get_ContextCancelled(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpclient.NewDefaultClient(0)
	_, err := client.Get(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to execute request"))
}
