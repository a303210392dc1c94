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


// Package ingestion loads catalog rows into an embedded catalog store.
//
// The Pipeline validates and stores rows synchronously, rejecting malformed
// rows individually, and computes their vector index entries on a bounded
// worker pool. Load reads JSON-lines catalog exports, one Record per line.
package ingestion
