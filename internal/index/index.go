// Package index holds the search index documents derived from registry
// metadata, one per package.
package index

import (
	"context"
	"time"

	"github.com/stacklok/npm-sync/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_index.go -package=mocks -source=index.go Index

// Document is the denormalized search representation of a package. Name is
// its identity; every other field is overwritten on each sync.
type Document struct {
	Name               string    `json:"name"`
	Version            string    `json:"version"`
	Description        string    `json:"description,omitempty"`
	Keywords           []string  `json:"keywords,omitempty"`
	License            string    `json:"license,omitempty"`
	Homepage           string    `json:"homepage,omitempty"`
	Repository         string    `json:"repository,omitempty"`
	Author             string    `json:"author,omitempty"`
	Maintainers        []string  `json:"maintainers,omitempty"`
	WeeklyDownloads    int64     `json:"weeklyDownloads"`
	Deprecated         bool      `json:"deprecated"`
	DeprecationMessage string    `json:"deprecationMessage,omitempty"`
	HasTypes           bool      `json:"hasTypes"`
	IsESM              bool      `json:"isESM"`
	DependencyCount    int       `json:"dependencyCount"`
	VersionCount       int       `json:"versionCount"`
	HasFunding         bool      `json:"hasFunding"`
	CreatedAt          time.Time `json:"createdAt"`
	ModifiedAt         time.Time `json:"modifiedAt"`
	PublishedAt        time.Time `json:"publishedAt"`
	IndexedAt          time.Time `json:"indexedAt"`
}

// Index is the search index client
type Index interface {
	// Upsert inserts or overwrites documents by name
	Upsert(ctx context.Context, docs []Document) error

	// Delete removes the document of a package; a missing document is not an error
	Delete(ctx context.Context, name string) error

	// Get returns the indexed document, or nil when the package is not indexed
	Get(ctx context.Context, name string) (*Document, error)
}

// FromPackument transforms registry metadata into an index document
func FromPackument(p *registry.Packument, weeklyDownloads int64, indexedAt time.Time) Document {
	return Document{
		Name:               p.Name,
		Version:            p.LatestVersion,
		Description:        p.Description,
		Keywords:           p.Keywords,
		License:            p.License,
		Homepage:           p.Homepage,
		Repository:         p.RepositoryURL,
		Author:             p.Author,
		Maintainers:        p.Maintainers,
		WeeklyDownloads:    weeklyDownloads,
		Deprecated:         p.Deprecated != "",
		DeprecationMessage: p.Deprecated,
		HasTypes:           p.HasTypes,
		IsESM:              p.IsESM,
		DependencyCount:    p.Dependencies,
		VersionCount:       p.VersionCount,
		HasFunding:         p.HasFunding,
		CreatedAt:          p.Created,
		ModifiedAt:         p.Modified,
		PublishedAt:        p.Published,
		IndexedAt:          indexedAt,
	}
}
