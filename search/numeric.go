package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

// DefaultRangeTolerance is the fraction of a spec's width (or value, for a
// single point) tolerated outside it.
const DefaultRangeTolerance = 0.2

// numericFetchFactor widens repository range queries relative to the limit.
const numericFetchFactor = 4

// NumericField maps a query attribute to a catalog column and the quantity
// used to parse its spec strings.
type NumericField struct {
	Attribute string // Key in ProductDescriptor.NumericSpecs, e.g. "voltage"
	Field     string // Catalog column, e.g. "voltage_kv"
	Kind      string // Quantity for ParseSpec; empty means Attribute
}

// DefaultNumericFields returns the standard attribute to column mapping.
func DefaultNumericFields() []NumericField {
	return []NumericField{
		{Attribute: "voltage", Field: "voltage_kv", Kind: QuantityVoltage},
		{Attribute: "current", Field: "current_a", Kind: QuantityCurrent},
		{Attribute: "frequency", Field: "frequency_hz", Kind: QuantityFrequency},
	}
}

func (f NumericField) kind() string {
	if f.Kind != "" {
		return f.Kind
	}
	return f.Attribute
}

func (f NumericField) validate() error {
	if f.Attribute == "" {
		return invalidConfig("numeric field has no attribute")
	}
	if err := storage.ValidateNumericField(f.Field); err != nil {
		return invalidConfig("numeric field %q: %v", f.Attribute, err)
	}
	if _, ok := unitScales[f.kind()]; !ok {
		return invalidConfig("numeric field %q: unsupported quantity %q", f.Attribute, f.kind())
	}
	return nil
}

// NumericStrategy scores catalog rows by how well their numeric attributes fit
// the query's specifications.
type NumericStrategy struct {
	repo      storage.CatalogRepository
	fields    map[string]NumericField
	tolerance float64
	logger    *slog.Logger
}

var _ Strategy = (*NumericStrategy)(nil)

// NewNumericStrategy creates a numeric range strategy.
// A tolerance <= 0 selects DefaultRangeTolerance; nil fields select DefaultNumericFields.
func NewNumericStrategy(repo storage.CatalogRepository, fields []NumericField, tolerance float64, logger *slog.Logger) *NumericStrategy {
	if tolerance <= 0 {
		tolerance = DefaultRangeTolerance
	}
	if fields == nil {
		fields = DefaultNumericFields()
	}
	if logger == nil {
		logger = slog.Default()
	}
	byAttr := make(map[string]NumericField, len(fields))
	for _, f := range fields {
		byAttr[f.Attribute] = f
	}
	return &NumericStrategy{
		repo:      repo,
		fields:    byAttr,
		tolerance: tolerance,
		logger:    logger.With("strategy", core.StrategyRange),
	}
}

// Name implements Strategy.
func (s *NumericStrategy) Name() core.StrategyName {
	return core.StrategyRange
}

// Execute implements Strategy.
func (s *NumericStrategy) Execute(ctx context.Context, q Query) ([]core.CandidateMatch, error) {
	return s.Search(ctx, q.Descriptor.NumericSpecs, q.Limit)
}

type parsedSpec struct {
	field NumericField
	spec  NumericSpec
}

// parse parses every spec with a configured field, in attribute order.
// Specs that cannot be used are logged and omitted.
func (s *NumericStrategy) parse(specs map[string]string) []parsedSpec {
	attrs := make([]string, 0, len(specs))
	for a := range specs {
		attrs = append(attrs, a)
	}
	slices.Sort(attrs)

	var parsed []parsedSpec
	for _, attr := range attrs {
		field, ok := s.fields[attr]
		if !ok {
			s.logger.Warn("no catalog column for numeric attribute", "attribute", attr)
			continue
		}
		spec, err := ParseSpec(field.kind(), specs[attr])
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Attribute = attr
			}
			s.logger.Warn("omitting numeric spec", "attribute", attr, "err", err)
			continue
		}
		parsed = append(parsed, parsedSpec{field: field, spec: spec})
	}
	return parsed
}

// Search returns rows scoring above zero on the mean of all parsed specs.
// A row missing an attribute, or outside its tolerance band, scores 0 for it.
func (s *NumericStrategy) Search(ctx context.Context, specs map[string]string, limit int) ([]core.CandidateMatch, error) {
	parsed := s.parse(specs)
	if len(parsed) == 0 {
		return nil, skipped("no parsable numeric specification")
	}

	rows := make(map[string]core.CatalogEntry)
	for _, p := range parsed {
		lo, hi := p.spec.Bounds(s.tolerance)
		found, err := s.repo.SearchByNumericRange(ctx, p.field.Field, lo, hi, limit*numericFetchFactor)
		if err != nil {
			return nil, &StrategyError{Strategy: core.StrategyRange, Err: err}
		}
		for _, row := range found {
			rows[row.ProductID] = row
		}
	}

	cands := make([]core.CandidateMatch, 0, len(rows))
	for _, row := range rows {
		total := 0.0
		var reasons []string
		for _, p := range parsed {
			value, ok := row.NumericValue(p.field.Field)
			if !ok {
				continue
			}
			score := p.spec.Score(value, s.tolerance)
			if score <= 0 {
				continue
			}
			total += score
			reasons = append(reasons, rangeReason(p, value, score))
		}
		mean := total / float64(len(parsed))
		if mean <= 0 {
			continue
		}
		cands = append(cands, core.NewCandidate(row, core.StrategyRange, clamp01(mean), reasons...))
	}
	sortCandidates(cands, core.StrategyRange)
	s.logger.Debug("range search finished", "specs", len(parsed), "rows", len(rows), "candidates", len(cands))
	return truncate(cands, limit), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func rangeReason(p parsedSpec, value, score float64) string {
	want := fmt.Sprintf("[%s, %s]", formatFloat(p.spec.Min), formatFloat(p.spec.Max))
	if p.spec.Discrete() {
		want = fmt.Sprint(p.spec.Values)
	}
	if score >= 1 {
		return fmt.Sprintf("range: %s=%s within %s", p.field.Field, formatFloat(value), want)
	}
	return fmt.Sprintf("range: %s=%s near %s (%.2f)", p.field.Field, formatFloat(value), want, score)
}
