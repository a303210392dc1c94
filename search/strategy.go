package search

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/textmatch"
)

// Query is the per-request input handed to every strategy.
type Query struct {
	Descriptor core.ProductDescriptor
	// Variants holds the spelling variants of the range and subrange labels.
	Variants []string
	// Limit caps the candidates a strategy returns.
	Limit int
}

// NewQuery builds the strategy input for a descriptor.
func NewQuery(d core.ProductDescriptor, limit int) Query {
	var variants []string
	for _, label := range d.Labels() {
		variants = append(variants, textmatch.GenerateVariants(label)...)
	}
	slices.Sort(variants)
	return Query{
		Descriptor: d,
		Variants:   slices.Compact(variants),
		Limit:      limit,
	}
}

// Strategy is one independent way of proposing catalog candidates.
//
// Execute returns candidates sorted by score descending, then product ID.
// It returns an error wrapping ErrStrategySkipped when it has nothing to
// contribute, and a *StrategyError when it failed.
// Implementations must be safe for concurrent use.
type Strategy interface {
	Name() core.StrategyName
	Execute(ctx context.Context, q Query) ([]core.CandidateMatch, error)
}

// sortCandidates orders candidates by the given strategy's score, then product ID.
func sortCandidates(cands []core.CandidateMatch, strategy core.StrategyName) {
	slices.SortFunc(cands, func(a, b core.CandidateMatch) int {
		if c := cmp.Compare(b.Scores[strategy], a.Scores[strategy]); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID(), b.ProductID())
	})
}

func truncate(cands []core.CandidateMatch, limit int) []core.CandidateMatch {
	if limit > 0 && len(cands) > limit {
		return cands[:limit]
	}
	return cands
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
