package changelog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/npm-sync/internal/httpclient"
)

func TestParseRepository(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input       string
		owner, repo string
		ok          bool
	}{
		{input: "git+https://github.com/lodash/lodash.git", owner: "lodash", repo: "lodash", ok: true},
		{input: "https://github.com/facebook/react/tree/main/packages/react", owner: "facebook", repo: "react", ok: true},
		{input: "git://github.com/expressjs/express.git", owner: "expressjs", repo: "express", ok: true},
		{input: "git@github.com:sindresorhus/got.git", owner: "sindresorhus", repo: "got", ok: true},
		{input: "https://github.com/vercel/next.js#readme", owner: "vercel", repo: "next.js", ok: true},
		{input: "github:babel/babel", owner: "babel", repo: "babel", ok: true},
		{input: "npm/cli", owner: "npm", repo: "cli", ok: true},
		{input: "https://gitlab.com/group/project.git", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			owner, repo, ok := ParseRepository(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestTagCandidates(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"v1.0.0", "1.0.0", "react@1.0.0"}, TagCandidates("react", "1.0.0"))
	assert.Equal(t,
		[]string{"v7.0.0", "7.0.0", "@babel/core@7.0.0", "core@7.0.0"},
		TagCandidates("@babel/core", "7.0.0"))
}

func TestGitHubClient_ReleaseNotes(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		requested []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.EscapedPath())
		mu.Unlock()

		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		if r.URL.EscapedPath() == "/repos/babel/babel/releases/tags/@babel%2Fcore@7.1.0" {
			_, _ = w.Write([]byte(`{"tag_name":"@babel/core@7.1.0","body":"## Bug fixes\n- things"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewGitHubClient(httpclient.NewDefaultClient(0), server.URL, "tok")
	notes, err := c.ReleaseNotes(context.Background(), "@babel/core", "git+https://github.com/babel/babel.git", "7.1.0")
	require.NoError(t, err)
	assert.Equal(t, "## Bug fixes\n- things", notes)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/repos/babel/babel/releases/tags/v7.1.0",
		"/repos/babel/babel/releases/tags/7.1.0",
		"/repos/babel/babel/releases/tags/@babel%2Fcore@7.1.0",
	}, requested)
}

func TestGitHubClient_NoRelease(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := NewGitHubClient(httpclient.NewDefaultClient(0), server.URL, "")
	notes, err := c.ReleaseNotes(context.Background(), "left-pad", "https://github.com/left-pad/left-pad", "1.3.0")
	require.NoError(t, err)
	assert.Empty(t, notes)

	notes, err = c.ReleaseNotes(context.Background(), "left-pad", "https://example.com/repo", "1.3.0")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestGitHubClient_RateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewGitHubClient(httpclient.NewDefaultClient(0), server.URL, "")
	_, err := c.ReleaseNotes(context.Background(), "left-pad", "left-pad/left-pad", "1.3.0")
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, httpclient.StatusCode(err))
}
