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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of rows embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of rows)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// After resumes a run after this product ID ("" processes every row)
	After string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarises a reembedding run.
type Result struct {
	Processed int
	// LastProductID is the last row whose vector was stored; pass it as
	// Config.After to resume an interrupted run.
	LastProductID string
	Elapsed       time.Duration
}

// Reembedder rebuilds the vector index of a catalog.
type Reembedder struct {
	writer    storage.CatalogWriter
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *EntryIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(writer storage.CatalogWriter, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if writer == nil {
		return nil, ErrCatalogWriterRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		writer:    writer,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(writer, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewEntryIterator(writer, config.BatchSize),
	}, nil
}

// Run embeds every row after Config.After and stores the vectors.
// On failure the returned Result still reports the rows completed so far.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	var result Result

	total, err := r.writer.Count(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count rows: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No rows found in catalog\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of up to %d rows (batch size: %d)\n", total, r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, r.config.After, func(entries []core.CatalogEntry) error {
		if err := r.processor.Process(ctx, entries); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		result.Processed += len(entries)
		result.LastProductID = entries[len(entries)-1].ProductID
		tracker.Increment(len(entries))
		return nil
	})
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		return result, err
	}
	tracker.Finish()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d rows in %v\n",
		result.Processed, result.Elapsed.Round(time.Millisecond))
	return result, nil
}
