package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// StrategyName identifies a search strategy.
type StrategyName string

const (
	// StrategyLexical scores catalog rows by trigram similarity.
	StrategyLexical StrategyName = "lexical"
	// StrategySemantic scores catalog rows by embedding similarity.
	StrategySemantic StrategyName = "semantic"
	// StrategyRange scores catalog rows by numeric attribute compatibility.
	StrategyRange StrategyName = "range"
	// StrategyKeyword scores catalog rows matched through configured keyword hints.
	StrategyKeyword StrategyName = "keyword"
)

// Catalog text columns.
const (
	FieldRangeLabel    = "range_label"
	FieldSubrangeLabel = "subrange_label"
	FieldDescription   = "description"
	FieldBrand         = "brand"
	FieldProductLine   = "product_line"
)

// TextFields lists every searchable text column.
var TextFields = []string{
	FieldRangeLabel,
	FieldSubrangeLabel,
	FieldDescription,
	FieldBrand,
	FieldProductLine,
}

// ProductDescriptor is a discovery query built from an obsolescence letter.
// It is constructed once per request and never modified.
type ProductDescriptor struct {
	RangeLabel      string
	SubrangeLabel   string            // Optional
	ProductLineHint string            // Optional
	Description     string            // Optional free text
	NumericSpecs    map[string]string // attribute -> raw spec string, e.g. "voltage" -> "12 – 17.5kV"
}

// Labels returns the non-empty identifier labels of the query, range first.
func (d ProductDescriptor) Labels() []string {
	labels := make([]string, 0, 2)
	if s := strings.TrimSpace(d.RangeLabel); s != "" {
		labels = append(labels, s)
	}
	if s := strings.TrimSpace(d.SubrangeLabel); s != "" {
		labels = append(labels, s)
	}
	return labels
}

// Text returns the query as a single free-text string for semantic matching.
func (d ProductDescriptor) Text() string {
	parts := d.Labels()
	if s := strings.TrimSpace(d.Description); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// CatalogEntry is one read-only row of the product catalog.
type CatalogEntry struct {
	ProductID        string
	RangeLabel       string
	SubrangeLabel    string
	Description      string
	Brand            string
	ProductLine      string
	CommercialStatus string
	Numeric          map[string]float64 // e.g. voltage_kv, current_a, frequency_hz
}

// Field returns the value of a text column by name.
func (e *CatalogEntry) Field(name string) string {
	switch name {
	case FieldRangeLabel:
		return e.RangeLabel
	case FieldSubrangeLabel:
		return e.SubrangeLabel
	case FieldDescription:
		return e.Description
	case FieldBrand:
		return e.Brand
	case FieldProductLine:
		return e.ProductLine
	}
	return ""
}

// NumericValue returns a numeric attribute and whether the row carries it.
func (e *CatalogEntry) NumericValue(field string) (float64, bool) {
	v, ok := e.Numeric[field]
	return v, ok
}

// EmbeddingText returns the text embedded for this row in the vector index.
func (e *CatalogEntry) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{e.Brand, e.RangeLabel, e.SubrangeLabel, e.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ScoredEntry is a catalog row with a similarity score, as returned by a vector index.
type ScoredEntry struct {
	Entry CatalogEntry
	Score float32
}

// CandidateMatch is a catalog row proposed as a match for a query.
type CandidateMatch struct {
	Entry            CatalogEntry
	Scores           map[StrategyName]float64 // Missing key means the strategy did not score this row
	Confidence       float64                  // Fused score in [0,1]
	EffectiveWeights map[StrategyName]float64 // Renormalized weights used for Confidence
	MatchReasons     []string                 // Sorted, unique
	StrategiesAgreed []StrategyName           // Sorted, unique
}

// NewCandidate creates a candidate scored by a single strategy.
func NewCandidate(entry CatalogEntry, strategy StrategyName, score float64, reasons ...string) CandidateMatch {
	c := CandidateMatch{
		Entry:  entry,
		Scores: map[StrategyName]float64{strategy: score},
	}
	c.AddStrategy(strategy)
	c.AddReasons(reasons...)
	return c
}

// ProductID returns the catalog key of the candidate.
func (c *CandidateMatch) ProductID() string {
	return c.Entry.ProductID
}

// Score returns the score a strategy assigned, if any.
func (c *CandidateMatch) Score(strategy StrategyName) (float64, bool) {
	s, ok := c.Scores[strategy]
	return s, ok
}

// Lexical returns the lexical score, if present.
func (c *CandidateMatch) Lexical() (float64, bool) { return c.Score(StrategyLexical) }

// Semantic returns the semantic score, if present.
func (c *CandidateMatch) Semantic() (float64, bool) { return c.Score(StrategySemantic) }

// Range returns the numeric range score, if present.
func (c *CandidateMatch) Range() (float64, bool) { return c.Score(StrategyRange) }

// AddReasons merges reasons into the sorted reason set.
func (c *CandidateMatch) AddReasons(reasons ...string) {
	for _, r := range reasons {
		if r == "" {
			continue
		}
		if i, found := slices.BinarySearch(c.MatchReasons, r); !found {
			c.MatchReasons = slices.Insert(c.MatchReasons, i, r)
		}
	}
}

// AddStrategy merges a strategy into the sorted agreement set.
func (c *CandidateMatch) AddStrategy(strategy StrategyName) {
	if i, found := slices.BinarySearch(c.StrategiesAgreed, strategy); !found {
		c.StrategiesAgreed = slices.Insert(c.StrategiesAgreed, i, strategy)
	}
}

// Exclusion records a candidate removed by a business rule.
type Exclusion struct {
	ProductID string
	Reason    string
}

// StrategyFailure records a strategy that did not contribute to a result.
type StrategyFailure struct {
	Strategy StrategyName
	Reason   string
	Skipped  bool // True when the strategy was not applicable or its provider was unavailable
}

// HistogramBuckets is the number of equal-width confidence buckets over [0,1].
const HistogramBuckets = 10

// Histogram counts fused candidates per confidence bucket.
// Bucket i holds scores in [i/10, (i+1)/10); a score of 1.0 lands in the last bucket.
type Histogram struct {
	Buckets [HistogramBuckets]int
}

// Add counts one score.
func (h *Histogram) Add(score float64) {
	i := int(score * HistogramBuckets)
	if i < 0 {
		i = 0
	}
	if i >= HistogramBuckets {
		i = HistogramBuckets - 1
	}
	h.Buckets[i]++
}

// Total returns the number of counted scores.
func (h *Histogram) Total() int {
	total := 0
	for _, n := range h.Buckets {
		total += n
	}
	return total
}

// DiscoveryResult is the outcome of one discovery request.
type DiscoveryResult struct {
	PrimaryMatches      []CandidateMatch // Confidence >= high threshold
	SecondaryMatches    []CandidateMatch // medium <= Confidence < high
	TotalFound          int              // Unique candidates surviving business rules, all tiers
	StrategiesUsed      []StrategyName   // Strategies that contributed, sorted
	StrategyFailures    []StrategyFailure
	ConfidenceHistogram Histogram
	Exclusions          []Exclusion
	Elapsed             time.Duration
}

// Degraded reports whether any enabled strategy failed or was skipped.
func (r *DiscoveryResult) Degraded() bool {
	return len(r.StrategyFailures) > 0
}
