package registry

import (
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Packument is the subset of package metadata the index needs, taken from
// the document root and the manifest of the latest version
type Packument struct {
	Name          string
	Description   string
	LatestVersion string
	Keywords      []string
	License       string
	Homepage      string
	RepositoryURL string
	Author        string
	Maintainers   []string
	Deprecated    string
	HasTypes      bool
	IsESM         bool
	Dependencies  int
	VersionCount  int
	HasFunding    bool
	Created       time.Time
	Modified      time.Time
	Published     time.Time
}

// ParsePackument extracts a Packument from a raw registry document without
// decoding the full versions map
func ParsePackument(body []byte) (*Packument, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid packument JSON")
	}
	doc := gjson.ParseBytes(body)

	p := &Packument{
		Name:          doc.Get("name").String(),
		Description:   doc.Get("description").String(),
		LatestVersion: doc.Get("dist-tags.latest").String(),
		Homepage:      doc.Get("homepage").String(),
		RepositoryURL: personOrString(doc.Get("repository"), "url"),
		Author:        personOrString(doc.Get("author"), "name"),
		License:       personOrString(doc.Get("license"), "type"),
		Created:       parseTime(doc.Get("time.created")),
		Modified:      parseTime(doc.Get("time.modified")),
	}
	if p.Name == "" {
		return nil, errors.New("packument has no name")
	}

	for _, k := range doc.Get("keywords").Array() {
		if s := k.String(); s != "" {
			p.Keywords = append(p.Keywords, s)
		}
	}
	for _, m := range doc.Get("maintainers").Array() {
		if s := personOrString(m, "name"); s != "" {
			p.Maintainers = append(p.Maintainers, s)
		}
	}

	var latest gjson.Result
	doc.Get("versions").ForEach(func(key, value gjson.Result) bool {
		p.VersionCount++
		if key.String() == p.LatestVersion {
			latest = value
		}
		return true
	})
	doc.Get("time").ForEach(func(key, value gjson.Result) bool {
		if key.String() == p.LatestVersion {
			p.Published = parseTime(value)
			return false
		}
		return true
	})

	if latest.Exists() {
		if p.Description == "" {
			p.Description = latest.Get("description").String()
		}
		if p.License == "" {
			p.License = personOrString(latest.Get("license"), "type")
		}
		if p.RepositoryURL == "" {
			p.RepositoryURL = personOrString(latest.Get("repository"), "url")
		}
		p.Deprecated = latest.Get("deprecated").String()
		p.HasTypes = latest.Get("types").Exists() || latest.Get("typings").Exists() ||
			strings.HasPrefix(p.Name, "@types/")
		p.IsESM = latest.Get("type").String() == "module"
		p.HasFunding = latest.Get("funding").Exists()
		latest.Get("dependencies").ForEach(func(_, _ gjson.Result) bool {
			p.Dependencies++
			return true
		})
	}
	return p, nil
}

// personOrString reads fields that npm allows as either a string or an
// object, such as author, license and repository
func personOrString(r gjson.Result, field string) string {
	if r.IsObject() {
		return r.Get(field).String()
	}
	return r.String()
}

func parseTime(r gjson.Result) time.Time {
	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return time.Time{}
	}
	return t
}
