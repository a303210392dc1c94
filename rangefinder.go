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


package rangefinder

import (
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/ai/openai"
	"github.com/poiesic/rangefinder/ingestion"
	"github.com/poiesic/rangefinder/reembed"
	"github.com/poiesic/rangefinder/search"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/storage/badger"
)

// Catalog bundles a badger-backed product catalog with the embedding
// provider used to index and query it.
type Catalog struct {
	repo     *badger.CatalogRepository
	provider ai.EmbeddingProvider
	logger   *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	aiConfig *ai.Config
	provider ai.EmbeddingProvider
	logger   *slog.Logger
	inMemory bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) CatalogOption {
	return func(o *catalogOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing embedding provider instead of building one
// from the AI configuration. The catalog closes it on Close.
func WithProvider(provider ai.EmbeddingProvider) CatalogOption {
	return func(o *catalogOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component the catalog creates.
func WithLogger(logger *slog.Logger) CatalogOption {
	return func(o *catalogOptions) {
		o.logger = logger
	}
}

// InMemory keeps the catalog in memory. The path is ignored.
func InMemory() CatalogOption {
	return func(o *catalogOptions) {
		o.inMemory = true
	}
}

// OpenCatalog opens (or creates) the catalog stored at path.
func OpenCatalog(path string, opts ...CatalogOption) (*Catalog, error) {
	options := &catalogOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	var repo *badger.CatalogRepository
	var err error
	if options.inMemory {
		repo, err = badger.NewMemoryCatalog(badger.WithLogger(options.logger))
	} else {
		repo, err = badger.NewCatalog(path, badger.WithLogger(options.logger))
	}
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	return &Catalog{
		repo:     repo,
		provider: provider,
		logger:   options.logger,
	}, nil
}

// Close releases the provider and the underlying store.
func (c *Catalog) Close() error {
	var errs []error
	if err := c.provider.Close(); err != nil {
		c.logger.Error("error closing embedding provider", "err", err)
		errs = append(errs, err)
	}
	if err := c.repo.Close(); err != nil {
		c.logger.Error("error closing catalog storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Repository returns the catalog's storage.
func (c *Catalog) Repository() storage.CatalogWriter {
	return c.repo
}

// Provider returns the catalog's embedding provider.
func (c *Catalog) Provider() ai.EmbeddingProvider {
	return c.provider
}

// NewEngine creates a discovery engine over the catalog. The catalog's
// logger is used unless opts set another.
func (c *Catalog) NewEngine(opts ...search.Option) (*search.Engine, error) {
	return search.NewEngine(c.repo, c.provider, append([]search.Option{search.WithLogger(c.logger)}, opts...)...)
}

func (c *Catalog) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(c.repo, c.provider, append([]ingestion.Option{ingestion.WithLogger(c.logger)}, opts...)...)
}

func (c *Catalog) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(c.repo, c.provider.Embedder(), config, progress)
}
