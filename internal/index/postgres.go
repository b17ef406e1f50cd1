package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex stores documents as jsonb in package_document, with a
// weighted tsvector over name, keywords and description for full text search
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex creates an index backed by pool
func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

const upsertDocument = `
	INSERT INTO package_document (name, version, document, weekly_downloads, search, indexed_at)
	VALUES ($1, $2, $3, $4,
		setweight(to_tsvector('simple', $1), 'A') ||
		setweight(to_tsvector('simple', $5), 'B') ||
		setweight(to_tsvector('english', $6), 'C'),
		$7)
	ON CONFLICT (name) DO UPDATE SET
		version = EXCLUDED.version,
		document = EXCLUDED.document,
		weekly_downloads = EXCLUDED.weekly_downloads,
		search = EXCLUDED.search,
		indexed_at = EXCLUDED.indexed_at`

// Upsert implements Index. All documents are written in one batch.
func (p *PostgresIndex) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range docs {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", d.Name, err)
		}
		batch.Queue(upsertDocument, d.Name, d.Version, raw, d.WeeklyDownloads,
			strings.Join(d.Keywords, " "), d.Description, d.IndexedAt)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert %d documents: %w", len(docs), err)
	}
	return nil
}

// Delete implements Index
func (p *PostgresIndex) Delete(ctx context.Context, name string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM package_document WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", name, err)
	}
	return nil
}

// Get implements Index
func (p *PostgresIndex) Get(ctx context.Context, name string) (*Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT document FROM package_document WHERE name = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", name, err)
	}

	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", name, err)
	}
	return &d, nil
}
