// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/textmatch"
)

// prefilterSimilarity is the trigram similarity at which SearchByText admits a
// row that does not contain a pattern outright. It matches the default
// pg_trgm similarity threshold.
const prefilterSimilarity = 0.3

// CatalogRepository implements storage.CatalogWriter for BadgerDB.
type CatalogRepository struct {
	backend     *Backend
	ownsBackend bool
	logger      *slog.Logger
}

var (
	_ storage.CatalogWriter  = (*CatalogRepository)(nil)
	_ storage.EmbeddingCache = (*CatalogRepository)(nil)
)

// Option configures a CatalogRepository.
type Option func(*CatalogRepository) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *CatalogRepository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "badger-catalog")
		return nil
	}
}

// NewCatalogRepository creates a catalog on an open backend.
// The caller keeps ownership of the backend.
func NewCatalogRepository(backend *Backend, opts ...Option) (*CatalogRepository, error) {
	if backend == nil {
		return nil, errors.New("badger catalog: backend is required")
	}
	r := &CatalogRepository{
		backend: backend,
		logger:  slog.Default().With("component", "badger-catalog"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewCatalog opens (or creates) a catalog stored in the directory at path.
// Closing the catalog closes the database.
func NewCatalog(path string, opts ...Option) (*CatalogRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	r, err := NewCatalogRepository(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	r.ownsBackend = true
	return r, nil
}

// Close releases the database if the catalog opened it.
func (r *CatalogRepository) Close() error {
	if r.ownsBackend && !r.backend.IsClosed() {
		return r.backend.Close()
	}
	return nil
}

// readEntry reads and validates one row. Returns nil if the key is absent.
func readEntry(tx *badger.Txn, productID string) (*core.CatalogEntry, error) {
	item, err := tx.Get(makeEntryKey(productID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry *core.CatalogEntry
	err = item.Value(func(val []byte) error {
		entry, err = storage.UnmarshalCatalogEntry(val)
		return err
	})
	return entry, err
}

// scanEntries calls fn for every well-formed row whose product ID sorts after
// the given one. Malformed rows are logged and skipped. fn returns false to stop.
func (r *CatalogRepository) scanEntries(ctx context.Context, tx *badger.Txn, after string, fn func(core.CatalogEntry) bool) error {
	prefix := []byte(entryPrefix + ":")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.NewIterator(opts)
	defer it.Close()

	start := prefix
	if after != "" {
		start = makeEntryKey(after)
	}
	for it.Seek(start); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		if after != "" && bytes.Equal(item.Key(), start) {
			continue
		}
		var entry *core.CatalogEntry
		err := item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalCatalogEntry(val)
			return err
		})
		if err != nil {
			r.logger.Warn("skipping undecodable catalog row", "key", string(item.Key()), "err", err)
			continue
		}
		if err := core.ValidateCatalogEntry(entry); err != nil {
			r.logger.Warn("skipping malformed catalog row", "err", err)
			continue
		}
		if !fn(*entry) {
			return nil
		}
	}
	return nil
}

type textPattern struct {
	raw       string
	canonical string
}

// textRelevance returns the best match of the row against any pattern and
// whether the row is admitted at all. A contained pattern scores the share of
// the field it covers, so an exact label scores 1.
func textRelevance(entry *core.CatalogEntry, fields []string, patterns []textPattern) (float64, bool) {
	best, admitted := 0.0, false
	for _, field := range fields {
		value := entry.Field(field)
		if value == "" {
			continue
		}
		canonValue := textmatch.Canonical(value)
		for _, p := range patterns {
			if canonValue != "" && strings.Contains(canonValue, p.canonical) {
				admitted = true
				best = max(best, float64(len(p.canonical))/float64(len(canonValue)))
			}
			sim := textmatch.Similarity(p.raw, value)
			if field == core.FieldDescription {
				sim = textmatch.WordSimilarity(p.raw, value)
			}
			if sim >= prefilterSimilarity {
				admitted = true
				best = max(best, sim)
			}
		}
	}
	return best, admitted
}

type rankedEntry struct {
	entry core.CatalogEntry
	score float64
}

// compareRanked orders by score descending, then product ID.
func compareRanked(a, b rankedEntry) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	return strings.Compare(a.entry.ProductID, b.entry.ProductID)
}

// topRanked keeps the best limit entries. It prunes in place once the slice
// holds twice the limit, so memory stays bounded on large scans.
func topRanked(ranked []rankedEntry, limit int, final bool) []rankedEntry {
	if !final && len(ranked) < 2*limit {
		return ranked
	}
	slices.SortFunc(ranked, compareRanked)
	return ranked[:min(len(ranked), limit)]
}

// SearchByText returns the limit rows that best match any pattern, ordered by
// relevance then product ID. A row is admitted when a field contains a pattern
// (case, accent and separator insensitive) or is trigram-similar to it.
func (r *CatalogRepository) SearchByText(ctx context.Context, patterns []string, fields []string, limit int) ([]core.CatalogEntry, error) {
	if err := storage.ValidateTextFields(fields); err != nil {
		return nil, err
	}
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	var compiled []textPattern
	for _, p := range patterns {
		if c := textmatch.Canonical(p); c != "" {
			compiled = append(compiled, textPattern{raw: p, canonical: c})
		}
	}
	if len(compiled) == 0 {
		return nil, nil
	}

	var ranked []rankedEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanEntries(ctx, tx, "", func(entry core.CatalogEntry) bool {
			if score, ok := textRelevance(&entry, fields, compiled); ok {
				ranked = topRanked(append(ranked, rankedEntry{entry: entry, score: score}), limit, false)
			}
			return true
		})
	}, false)
	if err != nil {
		return nil, err
	}

	ranked = topRanked(ranked, limit, true)
	results := make([]core.CatalogEntry, len(ranked))
	for i := range ranked {
		results[i] = ranked[i].entry
	}
	return results, nil
}

// SearchByNumericRange returns the limit rows whose numeric field lies in
// [min, max] closest to the middle of the range, then by product ID.
func (r *CatalogRepository) SearchByNumericRange(ctx context.Context, field string, min, max float64, limit int) ([]core.CatalogEntry, error) {
	if err := storage.ValidateNumericField(field); err != nil {
		return nil, err
	}
	if err := storage.ValidateRange(min, max); err != nil {
		return nil, err
	}
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	type hit struct {
		productID string
		distance  float64
	}
	center := min + (max-min)/2

	var results []core.CatalogEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeNumericFieldPrefix(field)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		var hits []hit
		for it.Seek(makePartialNumericKey(field, min)); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, productID := parseNumericKey(field, it.Item().Key())
			if value > max {
				break
			}
			hits = append(hits, hit{productID: productID, distance: math.Abs(value - center)})
		}

		slices.SortFunc(hits, func(a, b hit) int {
			if c := cmp.Compare(a.distance, b.distance); c != 0 {
				return c
			}
			return strings.Compare(a.productID, b.productID)
		})

		for _, h := range hits {
			if len(results) >= limit {
				break
			}
			entry, err := readEntry(tx, h.productID)
			if err != nil {
				r.logger.Warn("skipping unreadable catalog row", "product_id", h.productID, "err", err)
				continue
			}
			if entry == nil {
				continue
			}
			if err := core.ValidateCatalogEntry(entry); err != nil {
				r.logger.Warn("skipping malformed catalog row", "err", err)
				continue
			}
			results = append(results, *entry)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindSimilar scans the vector index and returns rows with cosine similarity
// >= minSimilarity, ordered by similarity descending then product ID.
func (r *CatalogRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.ScoredEntry, error) {
	if err := storage.ValidateLimit(limit); err != nil {
		return nil, err
	}

	type hit struct {
		productID string
		score     float32
	}
	var hits []hit
	var results []core.ScoredEntry

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix + ":")
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var stored []float32
			err := item.Value(func(val []byte) error {
				var err error
				stored, err = storage.UnmarshalVector(val)
				return err
			})
			if err != nil {
				r.logger.Warn("skipping undecodable vector", "key", string(item.Key()), "err", err)
				continue
			}
			if score := cosineSimilarity(vector, stored); score >= minSimilarity {
				hits = append(hits, hit{productID: productIDFromKey(vectorPrefix, item.Key()), score: score})
			}
		}

		slices.SortFunc(hits, func(a, b hit) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return strings.Compare(a.productID, b.productID)
		})

		for _, h := range hits {
			if len(results) >= limit {
				break
			}
			entry, err := readEntry(tx, h.productID)
			if err != nil || entry == nil {
				continue
			}
			if err := core.ValidateCatalogEntry(entry); err != nil {
				r.logger.Warn("skipping malformed catalog row", "err", err)
				continue
			}
			results = append(results, core.ScoredEntry{Entry: *entry, Score: h.score})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// VectorCount returns the number of rows with a stored embedding.
func (r *CatalogRepository) VectorCount(ctx context.Context) (int, error) {
	return r.countPrefix(vectorPrefix)
}

// Count returns the number of stored rows.
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	return r.countPrefix(entryPrefix)
}

func (r *CatalogRepository) countPrefix(prefix string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachKey(tx, []byte(prefix+":"), func([]byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// AddEntries validates and stores rows. Rows replacing an existing row drop the
// old numeric index keys, and the stored vector when the embedded text changed.
func (r *CatalogRepository) AddEntries(ctx context.Context, entries ...core.CatalogEntry) error {
	for i := range entries {
		if err := core.ValidateCatalogEntry(&entries[i]); err != nil {
			return err
		}
		for field := range entries[i].Numeric {
			if err := storage.ValidateNumericField(field); err != nil {
				return fmt.Errorf("%w: %s: %w", core.ErrInvalidCatalogEntry, entries[i].ProductID, err)
			}
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			old, err := readEntry(tx, entry.ProductID)
			if err != nil && !errors.Is(err, storage.ErrSerializationFailed) && !errors.Is(err, storage.ErrTruncatedData) {
				return err
			}
			if old != nil {
				for field, value := range old.Numeric {
					if err := tx.Delete(makeNumericKey(field, value, old.ProductID)); err != nil {
						return err
					}
				}
				if old.EmbeddingText() != entry.EmbeddingText() {
					if err := tx.Delete(makeVectorKey(entry.ProductID)); err != nil {
						return err
					}
				}
			}

			if err := tx.Set(makeEntryKey(entry.ProductID), storage.MarshalCatalogEntry(&entry)); err != nil {
				return err
			}
			for field, value := range entry.Numeric {
				if err := tx.Set(makeNumericKey(field, value, entry.ProductID), nil); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntries returns the rows with the given product IDs, skipping missing ones.
func (r *CatalogRepository) GetEntries(ctx context.Context, productIDs ...string) ([]core.CatalogEntry, error) {
	var results []core.CatalogEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range productIDs {
			entry, err := readEntry(tx, id)
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, *entry)
			}
		}
		return nil
	}, false)
	return results, err
}

// ForEachEntry iterates rows in product ID order after the given product ID.
// Iteration stops at the first error, which is yielded once.
func (r *CatalogRepository) ForEachEntry(ctx context.Context, after string) iter.Seq2[core.CatalogEntry, error] {
	return func(yield func(core.CatalogEntry, error) bool) {
		stopped := false
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			return r.scanEntries(ctx, tx, after, func(entry core.CatalogEntry) bool {
				if !yield(entry, nil) {
					stopped = true
					return false
				}
				return true
			})
		}, false)
		if err != nil && !stopped {
			yield(core.CatalogEntry{}, err)
		}
	}
}

// PutVectors stores embeddings for existing rows.
func (r *CatalogRepository) PutVectors(ctx context.Context, vectors map[string][]float32) error {
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if _, err := tx.Get(makeEntryKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: product %q", storage.ErrNotFound, id)
				}
				return err
			}
			if err := tx.Set(makeVectorKey(id), storage.MarshalVector(vectors[id])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEmbedding returns a cached embedding by content ID.
func (r *CatalogRepository) GetEmbedding(ctx context.Context, id core.ID) ([]float32, error) {
	var vector []float32
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			vector, err = storage.UnmarshalVector(val)
			return err
		})
	}, false)
	return vector, err
}

// PutEmbedding caches an embedding by content ID.
func (r *CatalogRepository) PutEmbedding(ctx context.Context, id core.ID, vector []float32) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEmbeddingKey(id), storage.MarshalVector(vector)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
