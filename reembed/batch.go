package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

// BatchProcessor embeds batches of catalog rows into the vector index.
type BatchProcessor struct {
	writer         storage.CatalogWriter
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts per embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(writer storage.CatalogWriter, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		writer:         writer,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the rows and stores their unit-length vectors.
func (bp *BatchProcessor) Process(ctx context.Context, entries []core.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].EmbeddingText()
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings for %s..%s: %w",
			entries[0].ProductID, entries[len(entries)-1].ProductID, err)
	}
	if len(embeddings) != len(entries) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entries), len(embeddings))
	}

	vectors := make(map[string][]float32, len(entries))
	for i := range entries {
		vectors[entries[i].ProductID] = NormalizeVector(embeddings[i])
	}
	if err := bp.writer.PutVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}
	return nil
}
