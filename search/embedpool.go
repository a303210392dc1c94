package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

const (
	// DefaultEmbeddingBatchSize is the number of texts sent per embedding call.
	DefaultEmbeddingBatchSize = 32

	// embeddingCacheCost bounds the in-process cache, in bytes of vector data.
	embeddingCacheCost = 64 << 20

	// submitRetryDelay is the wait between submissions while every worker is busy.
	submitRetryDelay = 2 * time.Millisecond
)

// EmbeddingPool runs embedding calls on a bounded worker pool and caches
// vectors by content ID, in process and optionally in a persistent store.
type EmbeddingPool struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	cache     *ristretto.Cache[uint64, []float32]
	store     storage.EmbeddingCache
	batchSize int
	logger    *slog.Logger
}

// NewEmbeddingPool creates a pool of size workers. store may be nil.
func NewEmbeddingPool(embedder ai.Embedder, size int, store storage.EmbeddingCache, logger *slog.Logger) (*EmbeddingPool, error) {
	if embedder == nil {
		return nil, errors.New("embedding pool: embedder is required")
	}
	if size < 1 {
		return nil, invalidConfig("pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []float32]{
		NumCounters: 100_000,
		MaxCost:     embeddingCacheCost,
		BufferItems: 64,
	})
	if err != nil {
		pool.Release()
		return nil, err
	}

	return &EmbeddingPool{
		embedder:  embedder,
		pool:      pool,
		cache:     cache,
		store:     store,
		batchSize: DefaultEmbeddingBatchSize,
		logger:    logger.With("component", "embedding-pool"),
	}, nil
}

// Close releases the workers and the cache.
func (p *EmbeddingPool) Close() {
	p.pool.Release()
	p.cache.Close()
}

type embedBatch struct {
	indexes []int
	vectors [][]float32
	err     error
}

// Embed returns one vector per text, in order. Cached vectors are reused and
// the rest are embedded in batches on the worker pool.
func (p *EmbeddingPool) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	ids := make([]core.ID, len(texts))
	var misses []int

	for i, text := range texts {
		ids[i] = core.IDFromContent(text)
		if v, ok := p.cache.Get(uint64(ids[i])); ok {
			out[i] = v
			continue
		}
		if p.store != nil {
			if v, err := p.store.GetEmbedding(ctx, ids[i]); err == nil {
				out[i] = v
				p.cache.Set(uint64(ids[i]), v, int64(len(v)*4))
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				p.logger.Debug("embedding store read failed", "err", err)
			}
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	batches := (len(misses) + p.batchSize - 1) / p.batchSize
	results := make(chan embedBatch, batches)
	for start := 0; start < len(misses); start += p.batchSize {
		indexes := misses[start:min(start+p.batchSize, len(misses))]
		batch := make([]string, len(indexes))
		for j, i := range indexes {
			batch[j] = texts[i]
		}
		err := p.submit(ctx, func() {
			if err := ctx.Err(); err != nil {
				results <- embedBatch{indexes: indexes, err: err}
				return
			}
			vectors, err := p.embedder.EmbedTexts(ctx, batch)
			results <- embedBatch{indexes: indexes, vectors: vectors, err: err}
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("submit embedding task: %w", err)
		}
	}

	var firstErr error
	for n := 0; n < batches; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-results:
			if r.err == nil && len(r.vectors) != len(r.indexes) {
				r.err = fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(r.vectors), len(r.indexes))
			}
			if r.err != nil {
				if firstErr == nil {
					firstErr = r.err
				}
				continue
			}
			for j, i := range r.indexes {
				v := r.vectors[j]
				out[i] = v
				p.cache.Set(uint64(ids[i]), v, int64(len(v)*4))
				if p.store != nil {
					if err := p.store.PutEmbedding(ctx, ids[i], v); err != nil {
						p.logger.Debug("embedding store write failed", "err", err)
					}
				}
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	p.cache.Wait()
	return out, nil
}

// submit queues task, waiting for a free worker until ctx is done. Tasks
// already queued write to a buffered channel and never block on return.
func (p *EmbeddingPool) submit(ctx context.Context, task func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.pool.Submit(task)
		if !errors.Is(err, ants.ErrPoolOverload) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(submitRetryDelay):
		}
	}
}
