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


// Package storage defines the catalog storage contracts used by discovery.
//
// Discovery reads through CatalogRepository only. Backends can also offer a
// precomputed VectorIndex and an EmbeddingCache; the semantic strategy detects
// both with type assertions and falls back to embedding a bounded corpus when
// they are missing. CatalogWriter is the maintenance surface used by the
// loading pipeline and the re-embedding tool.
//
// # Backends
//
//   - storage/badger: embedded store with a numeric index, vector index and
//     embedding cache. Implements every interface in this package.
//   - storage/postgres: read-only adapter over a PostgreSQL catalog using pg_trgm.
//
// # Usage
//
//	catalog, err := badger.NewCatalog("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer catalog.Close()
//
// Use in tests with in-memory storage:
//
//	catalog, err := badger.NewMemoryCatalog()
//
// # Boundary Validation
//
// Rows are checked with core.ValidateCatalogEntry when they cross the
// repository boundary. Malformed rows are dropped and logged, never returned
// half-populated. Field names in queries are checked against a fixed set so
// they can be used as SQL identifiers.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
