package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/internal/httpclient"
)

const leftPadPackument = `{
  "name": "left-pad",
  "description": "String left pad",
  "dist-tags": {"latest": "1.3.0"},
  "keywords": ["pad", "string"],
  "license": "WTFPL",
  "homepage": "https://github.com/stevemao/left-pad#readme",
  "repository": {"type": "git", "url": "git+https://github.com/stevemao/left-pad.git"},
  "author": {"name": "azer"},
  "maintainers": [{"name": "stevemao", "email": "s@example.com"}, "azer"],
  "time": {
    "created": "2014-03-17T22:24:40.000Z",
    "modified": "2022-06-19T11:49:59.000Z",
    "1.2.0": "2017-11-02T01:00:00.000Z",
    "1.3.0": "2018-04-09T01:00:00.000Z"
  },
  "versions": {
    "1.2.0": {"name": "left-pad", "version": "1.2.0"},
    "1.3.0": {
      "name": "left-pad",
      "version": "1.3.0",
      "types": "index.d.ts",
      "type": "module",
      "deprecated": "use String.prototype.padStart()",
      "dependencies": {"a": "^1.0.0", "b": "^2.0.0"},
      "funding": "https://example.com/fund"
    }
  }
}`

func newRegistryServer(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)
	client := NewHTTPClient(httpclient.NewDefaultClient(5*time.Second), server.URL, server.URL, server.URL)
	return client, server
}

func TestParsePackument(t *testing.T) {
	t.Parallel()

	p, err := ParsePackument([]byte(leftPadPackument))
	require.NoError(t, err)

	assert.Equal(t, "left-pad", p.Name)
	assert.Equal(t, "1.3.0", p.LatestVersion)
	assert.Equal(t, []string{"pad", "string"}, p.Keywords)
	assert.Equal(t, "WTFPL", p.License)
	assert.Equal(t, "git+https://github.com/stevemao/left-pad.git", p.RepositoryURL)
	assert.Equal(t, "azer", p.Author)
	assert.Equal(t, []string{"stevemao", "azer"}, p.Maintainers)
	assert.Equal(t, "use String.prototype.padStart()", p.Deprecated)
	assert.True(t, p.HasTypes)
	assert.True(t, p.IsESM)
	assert.True(t, p.HasFunding)
	assert.Equal(t, 2, p.Dependencies)
	assert.Equal(t, 2, p.VersionCount)
	assert.Equal(t, 2018, p.Published.Year())
	assert.Equal(t, 2014, p.Created.Year())
}

func TestParsePackument_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParsePackument([]byte(`{"versions":`))
	require.Error(t, err)

	_, err = ParsePackument([]byte(`{"description":"no name"}`))
	require.Error(t, err)
}

func TestHTTPClient_Packument(t *testing.T) {
	t.Parallel()

	var gotPath string
	client, _ := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		if strings.Contains(gotPath, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(strings.Replace(leftPadPackument, `"left-pad"`, `"@scope/left-pad"`, 1)))
	})

	p, err := client.Packument(context.Background(), "@scope/left-pad")
	require.NoError(t, err)
	assert.Equal(t, "@scope/left-pad", p.Name)
	assert.Equal(t, "/@scope%2Fleft-pad", gotPath)

	_, err = client.Packument(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_Changes(t *testing.T) {
	t.Parallel()

	client, _ := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_changes", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("since"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"results":[
			{"seq":101,"id":"react"},
			{"seq":"102","id":"_design/app"},
			{"seq":103,"id":"old-pkg","deleted":true}
		],"last_seq":103}`))
	})

	page, err := client.Changes(context.Background(), "100", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Fetched)
	assert.Equal(t, "103", page.LastSeq)
	assert.Equal(t, []Change{
		{Seq: "101", Name: "react"},
		{Seq: "103", Name: "old-pkg", Deleted: true},
	}, page.Changes)
}

func TestHTTPClient_CurrentSequence(t *testing.T) {
	t.Parallel()

	client, _ := newRegistryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"db_name":"registry","update_seq":98765}`))
	})

	seq, err := client.CurrentSequence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "98765", seq)
}

func TestHTTPClient_Downloads(t *testing.T) {
	t.Parallel()

	client, _ := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/downloads/point/last-week/react":
			_, _ = w.Write([]byte(`{"downloads":25000000,"package":"react"}`))
		case "/downloads/point/last-week/react,vue":
			_, _ = w.Write([]byte(`{"react":{"downloads":25},"vue":{"downloads":5}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	n, err := client.WeeklyDownloads(context.Background(), "react")
	require.NoError(t, err)
	assert.Equal(t, int64(25000000), n)

	n, err = client.WeeklyDownloads(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, n)

	bulk, err := client.BulkWeeklyDownloads(context.Background(), []string{"react", "vue"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"react": 25, "vue": 5}, bulk)

	_, err = client.BulkWeeklyDownloads(context.Background(), []string{"react", "@scope/x"})
	require.Error(t, err)
}

func TestHTTPClient_EnumeratePackages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"0": `{"results":[{"seq":1,"id":"a"},{"seq":2,"id":"b"}],"last_seq":2}`,
		"2": `{"results":[{"seq":3,"id":"a"},{"seq":4,"id":"c","deleted":true}],"last_seq":4}`,
		"4": `{"results":[{"seq":5,"id":"d"}],"last_seq":5}`,
	}
	client, _ := newRegistryServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("since")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprint(w, body)
	})

	names, err := client.EnumeratePackages(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, names)
}

func TestHTTPClient_EnumeratePackages_Error(t *testing.T) {
	t.Parallel()

	client, _ := newRegistryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.EnumeratePackages(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, httpclient.StatusCode(err))
}
