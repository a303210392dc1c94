package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/textmatch"
)

const (
	// DefaultSemanticCutoff is the minimum cosine similarity for a semantic candidate.
	DefaultSemanticCutoff = 0.30

	// DefaultMaxCorpus bounds the rows embedded per request without a vector index.
	DefaultMaxCorpus = 5000
)

var semanticFields = []string{core.FieldRangeLabel, core.FieldSubrangeLabel, core.FieldDescription, core.FieldBrand}

// SemanticStrategy scores catalog rows by cosine similarity between the query
// embedding and row embeddings.
//
// Rows come from the repository's vector index when it has one and it is
// populated. Otherwise a corpus of at most maxCorpus rows sharing a word with
// the query is embedded on demand.
type SemanticStrategy struct {
	repo       storage.CatalogRepository
	index      storage.VectorIndex
	embeddings *EmbeddingPool
	cutoff     float64
	maxCorpus  int
	logger     *slog.Logger
}

var _ Strategy = (*SemanticStrategy)(nil)

// NewSemanticStrategy creates a semantic strategy.
// cutoff <= 0 and maxCorpus <= 0 select the defaults.
func NewSemanticStrategy(repo storage.CatalogRepository, embeddings *EmbeddingPool, cutoff float64, maxCorpus int, logger *slog.Logger) *SemanticStrategy {
	if cutoff <= 0 {
		cutoff = DefaultSemanticCutoff
	}
	if maxCorpus <= 0 {
		maxCorpus = DefaultMaxCorpus
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SemanticStrategy{
		repo:       repo,
		embeddings: embeddings,
		cutoff:     cutoff,
		maxCorpus:  maxCorpus,
		logger:     logger.With("strategy", core.StrategySemantic),
	}
	if index, ok := repo.(storage.VectorIndex); ok {
		s.index = index
	}
	return s
}

// Name implements Strategy.
func (s *SemanticStrategy) Name() core.StrategyName {
	return core.StrategySemantic
}

// Execute implements Strategy.
func (s *SemanticStrategy) Execute(ctx context.Context, q Query) ([]core.CandidateMatch, error) {
	return s.Search(ctx, q.Descriptor.Text(), q.Limit)
}

// Search returns rows whose similarity to text is at least the cutoff, best first.
// An embedding failure skips the strategy rather than failing it.
func (s *SemanticStrategy) Search(ctx context.Context, text string, limit int) ([]core.CandidateMatch, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, skipped("query has no text")
	}

	vectors, err := s.embeddings.Embed(ctx, []string{text})
	if err != nil {
		return nil, s.embeddingFailure(ctx, err)
	}
	query := vectors[0]

	if s.index != nil {
		n, err := s.index.VectorCount(ctx)
		switch {
		case err != nil:
			s.logger.Warn("vector index unavailable, embedding corpus", "err", err)
		case n > 0:
			return s.searchIndex(ctx, query, limit)
		}
	}
	return s.searchCorpus(ctx, text, query, limit)
}

func (s *SemanticStrategy) embeddingFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &StrategyError{Strategy: core.StrategySemantic, Err: ctxErr}
	}
	return fmt.Errorf("%w: embedding provider unavailable: %w", ErrStrategySkipped, err)
}

func (s *SemanticStrategy) searchIndex(ctx context.Context, query []float32, limit int) ([]core.CandidateMatch, error) {
	hits, err := s.index.FindSimilar(ctx, query, float32(s.cutoff), limit)
	if err != nil {
		return nil, &StrategyError{Strategy: core.StrategySemantic, Err: err}
	}
	cands := make([]core.CandidateMatch, 0, len(hits))
	for _, h := range hits {
		score := clamp01(float64(h.Score))
		cands = append(cands, core.NewCandidate(h.Entry, core.StrategySemantic, score, semanticReason(score)))
	}
	sortCandidates(cands, core.StrategySemantic)
	return truncate(cands, limit), nil
}

func (s *SemanticStrategy) searchCorpus(ctx context.Context, text string, query []float32, limit int) ([]core.CandidateMatch, error) {
	tokens := textmatch.Tokens(text, 2)
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.repo.SearchByText(ctx, tokens, semanticFields, s.maxCorpus)
	if err != nil {
		return nil, &StrategyError{Strategy: core.StrategySemantic, Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	texts := make([]string, len(rows))
	for i := range rows {
		texts[i] = rows[i].EmbeddingText()
	}
	vectors, err := s.embeddings.Embed(ctx, texts)
	if err != nil {
		return nil, s.embeddingFailure(ctx, err)
	}

	var cands []core.CandidateMatch
	for i, row := range rows {
		sim := cosineSimilarity(query, vectors[i])
		if sim < s.cutoff {
			continue
		}
		score := clamp01(sim)
		cands = append(cands, core.NewCandidate(row, core.StrategySemantic, score, semanticReason(score)))
	}
	sortCandidates(cands, core.StrategySemantic)
	s.logger.Debug("semantic corpus search finished", "corpus", len(rows), "candidates", len(cands))
	return truncate(cands, limit), nil
}

func semanticReason(score float64) string {
	return fmt.Sprintf("semantic: cosine similarity %.2f", score)
}

// cosineSimilarity computes the cosine similarity of two vectors in float64.
// Vectors of different lengths or with zero norm have similarity 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
