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


package storage

import "errors"

// Catalog backends return these sentinels, usually wrapped with context.
// Discovery treats ErrUnavailable as a strategy failure and ErrInvalidQuery
// as a programming error.
var (
	// ErrNotFound is returned when a product ID or cached embedding does not exist.
	ErrNotFound = errors.New("catalog record not found")

	// ErrStorageClosed is returned by a backend used after Close.
	ErrStorageClosed = errors.New("catalog storage is closed")

	// ErrUnavailable is returned when the catalog backend cannot be reached.
	ErrUnavailable = errors.New("catalog unavailable")

	// ErrInvalidQuery is returned for unknown fields, inverted ranges or bad limits.
	ErrInvalidQuery = errors.New("invalid catalog query")

	// ErrSerializationFailed is returned when a stored value cannot be decoded.
	ErrSerializationFailed = errors.New("catalog value decoding failed")

	// ErrTruncatedData is returned when a stored value ends early.
	ErrTruncatedData = errors.New("catalog value truncated")
)
