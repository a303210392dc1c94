package search

import (
	"context"
	"testing"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalStrategy(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	s := NewLexicalStrategy(catalog, 0, nil)

	t.Run("identifier variants", func(t *testing.T) {
		q := NewQuery(core.ProductDescriptor{RangeLabel: "PIX 2B"}, 10)
		cands, err := s.Execute(ctx, q)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(cands), 2)

		assert.Equal(t, "PIX2B-001", cands[0].ProductID())
		score, ok := cands[0].Lexical()
		require.True(t, ok)
		assert.Equal(t, 1.0, score)
		assert.Contains(t, cands[0].MatchReasons, `lexical: range_label matches "PIX2B" (1.00)`)

		assert.Equal(t, "PIX2C-002", cands[1].ProductID())
		score, _ = cands[1].Lexical()
		assert.InDelta(t, 0.5, score, 1e-9)
	})

	t.Run("subrange label", func(t *testing.T) {
		cands, err := s.Search(ctx, []string{"SM6-24"}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, cands)
		assert.Equal(t, "SM6-24-100", cands[0].ProductID())
	})

	t.Run("below minimum similarity", func(t *testing.T) {
		cands, err := s.Search(ctx, []string{"Galaxy VM"}, 10)
		require.NoError(t, err)
		for _, c := range cands {
			score, _ := c.Lexical()
			assert.GreaterOrEqual(t, score, DefaultLexicalMinSimilarity)
		}
		assert.NotContains(t, candidateIDs(cands), "PIX2B-001")
	})

	t.Run("limit", func(t *testing.T) {
		cands, err := s.Search(ctx, []string{"PIX2B"}, 1)
		require.NoError(t, err)
		assert.Len(t, cands, 1)
	})

	t.Run("no labels skips", func(t *testing.T) {
		_, err := s.Execute(ctx, NewQuery(core.ProductDescriptor{Description: "switchgear"}, 10))
		assert.ErrorIs(t, err, ErrStrategySkipped)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := &fakeRepo{textFunc: func(context.Context, []string, []string, int) ([]core.CatalogEntry, error) {
			return nil, storage.ErrUnavailable
		}}
		_, err := NewLexicalStrategy(repo, 0, nil).Search(ctx, []string{"PIX2B"}, 10)
		var se *StrategyError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, core.StrategyLexical, se.Strategy)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})
}
