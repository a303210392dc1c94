package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/storage"
)

// embeddingProcessor computes vector index entries for catalog rows.
type embeddingProcessor struct {
	writer   storage.CatalogWriter
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(writer storage.CatalogWriter, embedder ai.Embedder, logger *slog.Logger) (processor, error) {
	if writer == nil {
		return nil, fmt.Errorf("catalog writer required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		writer:   writer,
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the specified rows and stores their vectors.
func (ep *embeddingProcessor) process(ctx context.Context, productIDs ...string) error {
	ep.logger.Debug("processing rows for embeddings", "rows", len(productIDs))

	productIDs = slices.Clone(productIDs)
	slices.Sort(productIDs)

	entries, err := ep.writer.GetEntries(ctx, productIDs...)
	if err != nil {
		ep.logger.Error("error retrieving catalog rows", "err", err)
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i := range entries {
		texts[i] = entries[i].EmbeddingText()
	}

	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}
	if len(embeddings) != len(entries) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(entries), len(embeddings))
	}

	vectors := make(map[string][]float32, len(entries))
	for i := range entries {
		vectors[entries[i].ProductID] = embeddings[i]
	}
	return ep.writer.PutVectors(ctx, vectors)
}
