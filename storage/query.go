package storage

import (
	"fmt"
	"math"
	"regexp"
	"slices"

	"github.com/poiesic/rangefinder/core"
)

var numericFieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateTextFields checks that every field names a searchable text column.
func ValidateTextFields(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidQuery)
	}
	for _, f := range fields {
		if !slices.Contains(core.TextFields, f) {
			return fmt.Errorf("%w: unknown text field %q", ErrInvalidQuery, f)
		}
	}
	return nil
}

// ValidateNumericField checks that field is a lower-case identifier usable as a column name.
func ValidateNumericField(field string) error {
	if !numericFieldPattern.MatchString(field) {
		return fmt.Errorf("%w: invalid numeric field %q", ErrInvalidQuery, field)
	}
	return nil
}

// ValidateRange checks the bounds of a numeric range query.
func ValidateRange(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return fmt.Errorf("%w: invalid range [%v, %v]", ErrInvalidQuery, min, max)
	}
	return nil
}

// ValidateLimit checks that a result limit is positive.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, limit)
	}
	return nil
}
