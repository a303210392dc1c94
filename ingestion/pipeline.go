package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

// DefaultBatchSize is the number of rows stored and embedded together.
const DefaultBatchSize = 256

// Pipeline stores catalog rows and maintains their vector index entries.
// Rows are stored synchronously; embeddings are computed on a worker pool.
type Pipeline struct {
	writer        storage.CatalogWriter
	embeddingPool *ants.Pool
	embeddingProc processor
	batchSize     int
	logger        *slog.Logger

	pending sync.WaitGroup
	mu      sync.Mutex
	errs    []error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets the number of rows per storage write and embedding call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(writer storage.CatalogWriter, provider ai.EmbeddingProvider, opts ...Option) (*Pipeline, error) {
	if writer == nil {
		return nil, ErrCatalogWriterRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	embeddingPool, err := ants.NewPool(max(1, runtime.NumCPU()/2))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		writer:        writer,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	embeddingProc, err := newEmbeddingProcessor(writer, provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Stats counts the outcome of an ingestion.
type Stats struct {
	Stored   int
	Rejected int
}

// Ingest validates and stores catalog rows, then embeds them asynchronously.
// Invalid rows are logged and rejected without failing the batch.
// Call Wait to block until the embeddings are stored.
func (p *Pipeline) Ingest(ctx context.Context, entries []core.CatalogEntry) (Stats, error) {
	var stats Stats
	valid := make([]core.CatalogEntry, 0, len(entries))
	for i := range entries {
		if err := core.ValidateCatalogEntry(&entries[i]); err != nil {
			p.logger.Warn("rejecting catalog row", "err", err)
			stats.Rejected++
			continue
		}
		valid = append(valid, entries[i])
	}

	for start := 0; start < len(valid); start += p.batchSize {
		batch := valid[start:min(start+p.batchSize, len(valid))]
		if err := p.writer.AddEntries(ctx, batch...); err != nil {
			return stats, err
		}
		stats.Stored += len(batch)

		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = batch[i].ProductID
		}
		if err := p.submit(ids); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (p *Pipeline) submit(ids []string) error {
	p.pending.Add(1)
	err := p.embeddingPool.Submit(func() {
		defer p.pending.Done()
		if err := p.embeddingProc.process(context.Background(), ids...); err != nil {
			p.logger.Error("error processing embeddings", "rows", len(ids), "err", err)
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	})
	if err != nil {
		p.pending.Done()
	}
	return err
}

// Wait blocks until every submitted embedding task has finished and returns
// the errors of failed tasks. Rows whose embedding failed stay stored and can
// be embedded later with the reembed package.
func (p *Pipeline) Wait() error {
	p.pending.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
