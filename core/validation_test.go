package core

import (
	"errors"
	"math"
	"testing"
)

func validEntry() *CatalogEntry {
	return &CatalogEntry{
		ProductID:        "PIX2B-001",
		RangeLabel:       "PIX2B",
		ProductLine:      "Medium Voltage",
		CommercialStatus: "End of commercialisation",
		Numeric:          map[string]float64{"voltage_kv": 17.5},
	}
}

func TestValidateCatalogEntry(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *CatalogEntry)
		wantErr error
	}{
		{
			name:    "valid entry",
			mutate:  func(e *CatalogEntry) {},
			wantErr: nil,
		},
		{
			name:    "valid entry without numeric attributes",
			mutate:  func(e *CatalogEntry) { e.Numeric = nil },
			wantErr: nil,
		},
		{
			name:    "blank product id",
			mutate:  func(e *CatalogEntry) { e.ProductID = "  " },
			wantErr: ErrEmptyProductID,
		},
		{
			name:    "empty range label",
			mutate:  func(e *CatalogEntry) { e.RangeLabel = "" },
			wantErr: ErrEmptyRangeLabel,
		},
		{
			name:    "empty product line",
			mutate:  func(e *CatalogEntry) { e.ProductLine = "" },
			wantErr: ErrEmptyProductLine,
		},
		{
			name:    "empty status",
			mutate:  func(e *CatalogEntry) { e.CommercialStatus = "" },
			wantErr: ErrEmptyStatus,
		},
		{
			name:    "NaN attribute",
			mutate:  func(e *CatalogEntry) { e.Numeric["current_a"] = math.NaN() },
			wantErr: ErrInvalidNumeric,
		},
		{
			name:    "infinite attribute",
			mutate:  func(e *CatalogEntry) { e.Numeric["current_a"] = math.Inf(1) },
			wantErr: ErrInvalidNumeric,
		},
		{
			name:    "unnamed attribute",
			mutate:  func(e *CatalogEntry) { e.Numeric[""] = 1 },
			wantErr: ErrInvalidNumeric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(e)
			err := ValidateCatalogEntry(e)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateCatalogEntry() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidCatalogEntry) {
				t.Errorf("ValidateCatalogEntry() error = %v, want wrapped ErrInvalidCatalogEntry", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCatalogEntry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCatalogEntry_Nil(t *testing.T) {
	if err := ValidateCatalogEntry(nil); !errors.Is(err, ErrInvalidCatalogEntry) {
		t.Errorf("ValidateCatalogEntry(nil) error = %v, want ErrInvalidCatalogEntry", err)
	}
}

func TestValidateDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		d       ProductDescriptor
		wantErr bool
	}{
		{"range label only", ProductDescriptor{RangeLabel: "PIX 2B"}, false},
		{"description only", ProductDescriptor{Description: "ring main unit"}, false},
		{"numeric spec only", ProductDescriptor{NumericSpecs: map[string]string{"voltage": "24 kV"}}, false},
		{"blank everything", ProductDescriptor{RangeLabel: " ", NumericSpecs: map[string]string{"voltage": " "}}, true},
		{"zero value", ProductDescriptor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDescriptor(tt.d)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEmptyDescriptor) {
				t.Errorf("ValidateDescriptor() error = %v, want ErrEmptyDescriptor", err)
			}
		})
	}
}
