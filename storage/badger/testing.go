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

// NewMemoryCatalog creates an in-memory catalog for testing.
// Closing the catalog releases the database.
func NewMemoryCatalog(opts ...Option) (*CatalogRepository, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	catalog, err := NewCatalogRepository(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	catalog.ownsBackend = true

	return catalog, nil
}
