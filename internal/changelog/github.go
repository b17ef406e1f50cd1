// Package changelog finds release notes of npm package versions on GitHub
package changelog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/npm-sync/internal/httpclient"
)

const apiVersion = "2022-11-28"

var (
	hostedRepoPattern = regexp.MustCompile(`github\.com[/:]([^/]+)/([^/#?]+)`)
	shorthandPattern  = regexp.MustCompile(`^(?:github:)?([\w.-]+)/([\w.-]+)$`)
)

// GitHubClient implements notify.ChangelogSource using GitHub releases
type GitHubClient struct {
	http    httpclient.Client
	baseURL string
	token   string
}

// NewGitHubClient creates a client for the GitHub API at baseURL. token may
// be empty, which subjects lookups to the anonymous rate limit.
func NewGitHubClient(client httpclient.Client, baseURL, token string) *GitHubClient {
	return &GitHubClient{
		http:    client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// ParseRepository extracts owner and repository name from the repository
// field of a packument. Non-GitHub repositories report ok == false.
func ParseRepository(repositoryURL string) (owner, repo string, ok bool) {
	s := strings.TrimSpace(repositoryURL)
	if m := hostedRepoPattern.FindStringSubmatch(s); m != nil {
		owner, repo = m[1], m[2]
	} else if m := shorthandPattern.FindStringSubmatch(s); m != nil {
		owner, repo = m[1], m[2]
	} else {
		return "", "", false
	}
	repo = strings.TrimSuffix(repo, ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

// TagCandidates lists the tag names a release of version is commonly published under
func TagCandidates(packageName, version string) []string {
	tags := []string{"v" + version, version, packageName + "@" + version}
	if strings.HasPrefix(packageName, "@") {
		if _, unscoped, found := strings.Cut(packageName, "/"); found {
			tags = append(tags, unscoped+"@"+version)
		}
	}
	return tags
}

// ReleaseNotes implements notify.ChangelogSource. The first tag variant with
// a release wins; no release under any variant yields "".
func (c *GitHubClient) ReleaseNotes(ctx context.Context, packageName, repositoryURL, version string) (string, error) {
	owner, repo, ok := ParseRepository(repositoryURL)
	if !ok {
		return "", nil
	}

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	for _, tag := range TagCandidates(packageName, version) {
		endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
			c.baseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(tag))
		body, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: endpoint, Header: header})
		if httpclient.IsNotFound(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to fetch release %s of %s/%s: %w", tag, owner, repo, err)
		}
		return gjson.GetBytes(body, "body").String(), nil
	}
	return "", nil
}
