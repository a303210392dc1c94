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


// Package search discovers catalog rows matching a product descriptor taken
// from an obsolescence letter.
//
// The Engine runs several independent strategies concurrently:
//   - Lexical: trigram similarity of identifier variants against range labels
//   - Semantic: cosine similarity of embeddings
//   - Range: overlap of numeric specifications with catalog attributes
//   - Keyword: configured hints mapping domain words to catalog patterns
//
// Their candidates are fused by product ID into a single confidence score,
// filtered by business rules, and classified into primary and secondary tiers.
// A strategy that fails or is not applicable lowers the quality of a result but
// never fails the discovery on its own.
package search
