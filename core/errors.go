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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidCatalogEntry indicates a CatalogEntry failed validation.
	ErrInvalidCatalogEntry = errors.New("invalid catalog entry")

	// ErrEmptyProductID indicates the ProductID field is empty.
	ErrEmptyProductID = errors.New("product identifier cannot be empty")

	// ErrEmptyRangeLabel indicates the RangeLabel field is empty.
	ErrEmptyRangeLabel = errors.New("range label cannot be empty")

	// ErrEmptyProductLine indicates the ProductLine field is empty.
	ErrEmptyProductLine = errors.New("product line cannot be empty")

	// ErrEmptyStatus indicates the CommercialStatus field is empty.
	ErrEmptyStatus = errors.New("commercial status cannot be empty")

	// ErrInvalidNumeric indicates a numeric attribute is NaN, infinite or unnamed.
	ErrInvalidNumeric = errors.New("invalid numeric attribute")

	// ErrEmptyDescriptor indicates a query carries nothing to search for.
	ErrEmptyDescriptor = errors.New("product descriptor has no range label, description or numeric specs")

	// ErrInvalidEncoding indicates a stored record could not be decoded.
	ErrInvalidEncoding = errors.New("invalid record encoding")
)
