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

import (
	"fmt"
	"math"
	"strings"
)

// ValidateCatalogEntry validates a CatalogEntry read from or written to a repository.
//
// Validation rules:
//   - ProductID, RangeLabel, ProductLine and CommercialStatus must not be blank
//   - Numeric attributes must be named and finite
//
// NOT validated (optional columns):
//   - SubrangeLabel, Description, Brand
func ValidateCatalogEntry(entry *CatalogEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidCatalogEntry)
	}

	if strings.TrimSpace(entry.ProductID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogEntry, ErrEmptyProductID)
	}

	if strings.TrimSpace(entry.RangeLabel) == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCatalogEntry, entry.ProductID, ErrEmptyRangeLabel)
	}

	if strings.TrimSpace(entry.ProductLine) == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCatalogEntry, entry.ProductID, ErrEmptyProductLine)
	}

	if strings.TrimSpace(entry.CommercialStatus) == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCatalogEntry, entry.ProductID, ErrEmptyStatus)
	}

	for field, v := range entry.Numeric {
		if strings.TrimSpace(field) == "" || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: %w: %q=%v", ErrInvalidCatalogEntry, entry.ProductID, ErrInvalidNumeric, field, v)
		}
	}

	return nil
}

// ValidateDescriptor checks that a query has at least one searchable signal.
func ValidateDescriptor(d ProductDescriptor) error {
	if len(d.Labels()) > 0 || strings.TrimSpace(d.Description) != "" {
		return nil
	}
	for _, raw := range d.NumericSpecs {
		if strings.TrimSpace(raw) != "" {
			return nil
		}
	}
	return ErrEmptyDescriptor
}
