package storage

import (
	"context"
	"iter"

	"github.com/poiesic/rangefinder/core"
)

// CatalogRepository is the read surface discovery needs from a product catalog.
// Implementations must be thread-safe and support concurrent access.
type CatalogRepository interface {
	// SearchByText returns rows where any of the given text fields matches any
	// of the patterns. Matching is case-insensitive and may be approximate; when
	// more rows match than limit, the most similar ones are kept, ties broken by
	// ProductID. Callers rescore what they receive.
	// Returns ErrInvalidQuery for unknown fields or a non-positive limit.
	SearchByText(ctx context.Context, patterns []string, fields []string, limit int) ([]core.CatalogEntry, error)

	// SearchByNumericRange returns rows whose numeric field lies in [min, max].
	// When more rows qualify than limit, the ones closest to the middle of the
	// range are kept, ties broken by ProductID.
	// Returns ErrInvalidQuery for an invalid field, min > max or a non-positive limit.
	SearchByNumericRange(ctx context.Context, field string, min, max float64, limit int) ([]core.CatalogEntry, error)
}

// VectorIndex is implemented by repositories holding precomputed row embeddings.
type VectorIndex interface {
	// FindSimilar returns rows with cosine similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first), then ProductID.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.ScoredEntry, error)

	// VectorCount returns the number of indexed rows.
	VectorCount(ctx context.Context) (int, error)
}

// EmbeddingCache stores embeddings by content ID.
type EmbeddingCache interface {
	// GetEmbedding returns the cached vector for id.
	// Returns ErrNotFound if nothing is cached.
	GetEmbedding(ctx context.Context, id core.ID) ([]float32, error)

	// PutEmbedding caches a vector under id, replacing any previous value.
	PutEmbedding(ctx context.Context, id core.ID, vector []float32) error
}

// CatalogWriter maintains a catalog and its vector index.
// It is used by loading and re-embedding tools, never by discovery.
type CatalogWriter interface {
	CatalogRepository
	VectorIndex

	// AddEntries validates and stores rows, replacing rows with the same ProductID.
	// Returns an error wrapping core.ErrInvalidCatalogEntry if any row is invalid;
	// in that case nothing is written.
	AddEntries(ctx context.Context, entries ...core.CatalogEntry) error

	// GetEntries returns the rows with the given product IDs.
	// Missing IDs are skipped.
	GetEntries(ctx context.Context, productIDs ...string) ([]core.CatalogEntry, error)

	// ForEachEntry iterates rows in ProductID order, starting after the given
	// product ID ("" starts at the beginning).
	ForEachEntry(ctx context.Context, after string) iter.Seq2[core.CatalogEntry, error]

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	// PutVectors stores embeddings keyed by product ID.
	// Returns ErrNotFound if a product ID has no row.
	PutVectors(ctx context.Context, vectors map[string][]float32) error

	// Close releases the underlying store.
	Close() error
}
