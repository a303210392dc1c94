package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/textmatch"
)

// DefaultKeywordScore is the score given to rows found through a hint with no explicit score.
const DefaultKeywordScore = 0.6

var keywordFields = []string{core.FieldRangeLabel, core.FieldDescription}

// KeywordHint maps a domain keyword found in the query to catalog patterns,
// e.g. "disjoncteur" to a set of breaker range names.
type KeywordHint struct {
	Keyword     string   `toml:"keyword"`
	Patterns    []string `toml:"patterns"`
	ProductLine string   `toml:"product_line"`
	Score       float64  `toml:"score"`
}

func (h KeywordHint) validate() error {
	if len(textmatch.Words(h.Keyword)) == 0 {
		return invalidConfig("keyword hint has an empty keyword")
	}
	if len(h.Patterns) == 0 {
		return invalidConfig("keyword hint %q has no patterns", h.Keyword)
	}
	if math.IsNaN(h.Score) || h.Score < 0 || h.Score > 1 {
		return invalidConfig("keyword hint %q has score %v outside [0,1]", h.Keyword, h.Score)
	}
	return nil
}

type keywordHintFile struct {
	Hints []KeywordHint `toml:"hint"`
}

// LoadKeywordHints reads keyword hints from a TOML file of [[hint]] tables.
func LoadKeywordHints(path string) ([]KeywordHint, error) {
	var f keywordHintFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s: unknown key %s", ErrInvalidConfig, path, undecoded[0])
	}
	for _, h := range f.Hints {
		if err := h.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Hints, nil
}

// KeywordStrategy proposes rows from configured keyword hints.
type KeywordStrategy struct {
	repo   storage.CatalogRepository
	hints  []KeywordHint
	logger *slog.Logger
}

var _ Strategy = (*KeywordStrategy)(nil)

// NewKeywordStrategy creates a keyword strategy over validated hints.
func NewKeywordStrategy(repo storage.CatalogRepository, hints []KeywordHint, logger *slog.Logger) (*KeywordStrategy, error) {
	for _, h := range hints {
		if err := h.validate(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordStrategy{
		repo:   repo,
		hints:  hints,
		logger: logger.With("strategy", core.StrategyKeyword),
	}, nil
}

// Name implements Strategy.
func (s *KeywordStrategy) Name() core.StrategyName {
	return core.StrategyKeyword
}

// Execute implements Strategy.
func (s *KeywordStrategy) Execute(ctx context.Context, q Query) ([]core.CandidateMatch, error) {
	text := q.Descriptor.Text()
	if hint := strings.TrimSpace(q.Descriptor.ProductLineHint); hint != "" {
		text += " " + hint
	}
	return s.Search(ctx, text, q.Limit)
}

// Search runs every hint whose keyword occurs in text as whole words. It is
// skipped when no hint matches.
func (s *KeywordStrategy) Search(ctx context.Context, text string, limit int) ([]core.CandidateMatch, error) {
	words := textmatch.Words(text)
	byID := make(map[string]core.CandidateMatch)
	matched := 0

	for _, h := range s.hints {
		if !containsWords(words, textmatch.Words(h.Keyword)) {
			continue
		}
		matched++
		rows, err := s.repo.SearchByText(ctx, h.Patterns, keywordFields, limit)
		if err != nil {
			return nil, &StrategyError{Strategy: core.StrategyKeyword, Err: err}
		}
		score := h.Score
		if score == 0 {
			score = DefaultKeywordScore
		}
		reason := fmt.Sprintf("keyword: %q suggests %s", h.Keyword, strings.Join(h.Patterns, ", "))
		for _, row := range rows {
			if h.ProductLine != "" && !sameLine(h.ProductLine, row.ProductLine) {
				continue
			}
			c, ok := byID[row.ProductID]
			if !ok {
				byID[row.ProductID] = core.NewCandidate(row, core.StrategyKeyword, score, reason)
				continue
			}
			c.Scores[core.StrategyKeyword] = max(c.Scores[core.StrategyKeyword], score)
			c.AddReasons(reason)
			byID[row.ProductID] = c
		}
	}
	if matched == 0 {
		return nil, skipped("no keyword hint matches the query")
	}

	cands := make([]core.CandidateMatch, 0, len(byID))
	for _, c := range byID {
		cands = append(cands, c)
	}
	sortCandidates(cands, core.StrategyKeyword)
	s.logger.Debug("keyword search finished", "hints", matched, "candidates", len(cands))
	return truncate(cands, limit), nil
}

func sameLine(a, b string) bool {
	return strings.Join(strings.Fields(textmatch.Fold(a)), " ") == strings.Join(strings.Fields(textmatch.Fold(b)), " ")
}

// containsWords reports whether keyword appears in words as a run of
// consecutive words. A text word also matches its keyword word in plural form.
func containsWords(words, keyword []string) bool {
	if len(keyword) == 0 {
		return false
	}
	for i := 0; i+len(keyword) <= len(words); i++ {
		match := true
		for j, k := range keyword {
			if !sameWord(words[i+j], k) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func sameWord(word, keyword string) bool {
	if word == keyword {
		return true
	}
	rest, ok := strings.CutPrefix(word, keyword)
	return ok && (rest == "s" || rest == "es" || rest == "x")
}
