package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/npm-sync/internal/httpclient"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// ErrNotFound is returned when a package does not exist upstream
var ErrNotFound = errors.New("package not found")

// MaxBulkDownloads is the most package names the bulk downloads endpoint accepts
const MaxBulkDownloads = 128

// Change is one entry of the change log
type Change struct {
	Seq     string
	Name    string
	Deleted bool
}

// ChangesPage is one page of the change log
type ChangesPage struct {
	Changes []Change
	// Fetched counts every returned row, including skipped bookkeeping rows
	Fetched int
	// LastSeq is the cursor to resume from
	LastSeq string
}

// Client reads from the upstream registry
type Client interface {
	// CurrentSequence returns the head of the change log
	CurrentSequence(ctx context.Context) (string, error)

	// Changes returns up to limit changes after since
	Changes(ctx context.Context, since string, limit int) (*ChangesPage, error)

	// Packument fetches and parses the metadata of a package
	Packument(ctx context.Context, name string) (*Packument, error)

	// WeeklyDownloads returns last week's download count of a package
	WeeklyDownloads(ctx context.Context, name string) (int64, error)

	// BulkWeeklyDownloads returns last week's download counts of unscoped packages
	BulkWeeklyDownloads(ctx context.Context, names []string) (map[string]int64, error)

	// EnumeratePackages lists every live package name by paging the change log from the start
	EnumeratePackages(ctx context.Context, pageSize int) ([]string, error)
}

// HTTPClient implements Client over the public npm endpoints
type HTTPClient struct {
	http         httpclient.Client
	registryURL  string
	replicateURL string
	downloadsURL string
}

// NewHTTPClient creates a registry client
func NewHTTPClient(client httpclient.Client, registryURL, replicateURL, downloadsURL string) *HTTPClient {
	return &HTTPClient{
		http:         client,
		registryURL:  strings.TrimSuffix(registryURL, "/"),
		replicateURL: strings.TrimSuffix(replicateURL, "/"),
		downloadsURL: strings.TrimSuffix(downloadsURL, "/"),
	}
}

// EscapeName escapes a package name for use as a path segment. The slash of
// a scoped name is encoded so "@scope/name" stays one segment.
func EscapeName(name string) string {
	return url.PathEscape(name)
}

// CurrentSequence implements Client
func (c *HTTPClient) CurrentSequence(ctx context.Context) (string, error) {
	body, err := c.http.Get(ctx, c.replicateURL+"/")
	if err != nil {
		return "", fmt.Errorf("failed to fetch registry info: %w", err)
	}
	seq := gjson.GetBytes(body, "update_seq")
	if !seq.Exists() {
		return "", errors.New("registry info has no update_seq")
	}
	return seq.String(), nil
}

// Changes implements Client
func (c *HTTPClient) Changes(ctx context.Context, since string, limit int) (*ChangesPage, error) {
	q := url.Values{}
	q.Set("since", since)
	q.Set("limit", strconv.Itoa(limit))
	body, err := c.http.Get(ctx, c.replicateURL+"/_changes?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changes since %s: %w", since, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid changes response since %s", since)
	}

	results := gjson.GetBytes(body, "results").Array()
	page := &ChangesPage{
		Changes: make([]Change, 0, len(results)),
		Fetched: len(results),
		LastSeq: gjson.GetBytes(body, "last_seq").String(),
	}
	for _, r := range results {
		id := r.Get("id").String()
		// design documents are replication bookkeeping, not packages
		if id == "" || strings.HasPrefix(id, "_design/") {
			continue
		}
		page.Changes = append(page.Changes, Change{
			Seq:     r.Get("seq").String(),
			Name:    id,
			Deleted: r.Get("deleted").Bool(),
		})
	}
	if page.LastSeq == "" {
		page.LastSeq = since
		if n := len(results); n > 0 {
			page.LastSeq = results[n-1].Get("seq").String()
		}
	}
	return page, nil
}

// Packument implements Client
func (c *HTTPClient) Packument(ctx context.Context, name string) (*Packument, error) {
	body, err := c.http.Get(ctx, c.registryURL+"/"+EscapeName(name))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch packument of %s: %w", name, err)
	}
	return ParsePackument(body)
}

// WeeklyDownloads implements Client. A package without stats has zero downloads.
func (c *HTTPClient) WeeklyDownloads(ctx context.Context, name string) (int64, error) {
	body, err := c.http.Get(ctx, c.downloadsURL+"/downloads/point/last-week/"+EscapeName(name))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch downloads of %s: %w", name, err)
	}
	return gjson.GetBytes(body, "downloads").Int(), nil
}

// BulkWeeklyDownloads implements Client. Scoped names are rejected by the
// upstream bulk endpoint and must be fetched one by one.
func (c *HTTPClient) BulkWeeklyDownloads(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for start := 0; start < len(names); start += MaxBulkDownloads {
		end := min(start+MaxBulkDownloads, len(names))
		chunk := names[start:end]
		for _, n := range chunk {
			if strings.HasPrefix(n, "@") {
				return nil, fmt.Errorf("scoped package %s is not supported by bulk downloads", n)
			}
		}

		body, err := c.http.Get(ctx, c.downloadsURL+"/downloads/point/last-week/"+strings.Join(chunk, ","))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch bulk downloads: %w", err)
		}
		// a single-name request answers with the single-package shape
		if len(chunk) == 1 {
			out[chunk[0]] = gjson.GetBytes(body, "downloads").Int()
			continue
		}
		gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = value.Get("downloads").Int()
			return true
		})
	}
	return out, nil
}

// EnumeratePackages implements Client. Names are returned in first-seen
// order; a name whose latest change is a deletion is dropped.
func (c *HTTPClient) EnumeratePackages(ctx context.Context, pageSize int) ([]string, error) {
	since := "0"
	index := make(map[string]int)
	var names []string
	var deleted []bool

	for {
		page, err := c.Changes(ctx, since, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate packages: %w", err)
		}
		for _, ch := range page.Changes {
			if i, ok := index[ch.Name]; ok {
				deleted[i] = ch.Deleted
				continue
			}
			index[ch.Name] = len(names)
			names = append(names, ch.Name)
			deleted = append(deleted, ch.Deleted)
		}
		if page.Fetched < pageSize || page.LastSeq == since {
			break
		}
		since = page.LastSeq
	}

	live := names[:0]
	for i, name := range names {
		if !deleted[i] {
			live = append(live, name)
		}
	}
	return live, nil
}
