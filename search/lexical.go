package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/textmatch"
)

// DefaultLexicalMinSimilarity is the trigram similarity below which rows are dropped.
const DefaultLexicalMinSimilarity = 0.3

// lexicalFetchFactor widens the repository prefilter relative to the limit.
const lexicalFetchFactor = 4

var lexicalFields = []string{core.FieldRangeLabel, core.FieldSubrangeLabel, core.FieldDescription}

// LexicalStrategy scores catalog rows by trigram similarity between identifier
// variants and the row's labels and description.
type LexicalStrategy struct {
	repo          storage.CatalogRepository
	minSimilarity float64
	logger        *slog.Logger
}

var _ Strategy = (*LexicalStrategy)(nil)

// NewLexicalStrategy creates a lexical strategy. A minSimilarity <= 0 selects the default.
func NewLexicalStrategy(repo storage.CatalogRepository, minSimilarity float64, logger *slog.Logger) *LexicalStrategy {
	if minSimilarity <= 0 {
		minSimilarity = DefaultLexicalMinSimilarity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LexicalStrategy{
		repo:          repo,
		minSimilarity: minSimilarity,
		logger:        logger.With("strategy", core.StrategyLexical),
	}
}

// Name implements Strategy.
func (s *LexicalStrategy) Name() core.StrategyName {
	return core.StrategyLexical
}

// Execute implements Strategy.
func (s *LexicalStrategy) Execute(ctx context.Context, q Query) ([]core.CandidateMatch, error) {
	if len(q.Variants) == 0 {
		return nil, skipped("query has no range or subrange label")
	}
	return s.Search(ctx, q.Variants, q.Limit)
}

// Search returns rows whose best trigram similarity against any variant is at
// least the minimum similarity, best first.
func (s *LexicalStrategy) Search(ctx context.Context, variants []string, limit int) ([]core.CandidateMatch, error) {
	rows, err := s.repo.SearchByText(ctx, variants, lexicalFields, limit*lexicalFetchFactor)
	if err != nil {
		return nil, &StrategyError{Strategy: core.StrategyLexical, Err: err}
	}

	cands := make([]core.CandidateMatch, 0, len(rows))
	for _, row := range rows {
		score, reason := s.score(&row, variants)
		if score < s.minSimilarity {
			continue
		}
		cands = append(cands, core.NewCandidate(row, core.StrategyLexical, score, reason))
	}
	sortCandidates(cands, core.StrategyLexical)
	s.logger.Debug("lexical search finished", "rows", len(rows), "candidates", len(cands))
	return truncate(cands, limit), nil
}

// score returns the best similarity of the row to any variant and the reason for it.
func (s *LexicalStrategy) score(row *core.CatalogEntry, variants []string) (float64, string) {
	best, reason := 0.0, ""
	consider := func(sim float64, field, variant string) {
		if sim > best {
			best = sim
			reason = fmt.Sprintf("lexical: %s matches %q (%.2f)", field, variant, sim)
		}
	}
	for _, v := range variants {
		consider(textmatch.Similarity(v, row.RangeLabel), core.FieldRangeLabel, v)
		if row.SubrangeLabel != "" {
			consider(textmatch.Similarity(v, row.SubrangeLabel), core.FieldSubrangeLabel, v)
		}
		if row.Description != "" {
			consider(textmatch.WordSimilarity(v, row.Description), core.FieldDescription, v)
		}
	}
	return best, reason
}
