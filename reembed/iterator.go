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

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

const (
	// DefaultBatchSize is the default number of rows embedded per batch
	DefaultBatchSize = 100
)

// EntryIterator streams catalog rows in product ID order, in batches.
type EntryIterator struct {
	writer    storage.CatalogWriter
	batchSize int
}

// NewEntryIterator creates a new entry iterator.
// batchSize: number of rows per batch (<= 0 selects DefaultBatchSize)
func NewEntryIterator(writer storage.CatalogWriter, batchSize int) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EntryIterator{
		writer:    writer,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of rows after the given product ID
// ("" starts at the beginning). Iteration stops on the first error from fn or
// the store, and on context cancellation.
func (it *EntryIterator) ForEach(ctx context.Context, after string, fn func([]core.CatalogEntry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]core.CatalogEntry, 0, it.batchSize)
	for entry, err := range it.writer.ForEachEntry(ctx, after) {
		if err != nil {
			return err
		}
		batch = append(batch, entry)
		if len(batch) < it.batchSize {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]core.CatalogEntry, 0, it.batchSize)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
