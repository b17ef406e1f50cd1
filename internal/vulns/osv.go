// Package vulns looks up known advisories for npm package versions in the
// OSV database.
package vulns

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/npm-sync/internal/httpclient"
	"github.com/stacklok/npm-sync/internal/notify"
)

// maxPages bounds pagination of a single query
const maxPages = 10

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvQuery struct {
	Package   osvPackage `json:"package"`
	Version   string     `json:"version"`
	PageToken string     `json:"page_token,omitempty"`
}

// OSVClient implements notify.VulnerabilitySource against the OSV query API
type OSVClient struct {
	http    httpclient.Client
	baseURL string
}

// NewOSVClient creates a client for the OSV API at baseURL
func NewOSVClient(client httpclient.Client, baseURL string) *OSVClient {
	return &OSVClient{
		http:    client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Vulnerabilities implements notify.VulnerabilitySource. Advisories without
// a GitHub severity rating count toward the total only.
func (c *OSVClient) Vulnerabilities(ctx context.Context, packageName, version string) (notify.VulnerabilityCounts, error) {
	var counts notify.VulnerabilityCounts
	query := osvQuery{
		Package: osvPackage{Name: packageName, Ecosystem: "npm"},
		Version: version,
	}

	for range maxPages {
		body, err := c.http.PostJSON(ctx, c.baseURL+"/v1/query", query, nil)
		if err != nil {
			return notify.VulnerabilityCounts{}, fmt.Errorf("failed to query advisories for %s@%s: %w", packageName, version, err)
		}
		if !gjson.ValidBytes(body) {
			return notify.VulnerabilityCounts{}, fmt.Errorf("invalid advisory response for %s@%s", packageName, version)
		}

		gjson.GetBytes(body, "vulns").ForEach(func(_, v gjson.Result) bool {
			counts.Total++
			switch strings.ToLower(v.Get("database_specific.severity").String()) {
			case "critical":
				counts.Critical++
			case "high":
				counts.High++
			case "moderate", "medium":
				counts.Moderate++
			case "low":
				counts.Low++
			}
			return true
		})

		query.PageToken = gjson.GetBytes(body, "next_page_token").String()
		if query.PageToken == "" {
			break
		}
	}
	return counts, nil
}
