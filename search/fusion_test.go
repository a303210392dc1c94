package search

import (
	"testing"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id string, strategy core.StrategyName, score float64) core.CandidateMatch {
	return core.NewCandidate(core.CatalogEntry{
		ProductID:        id,
		RangeLabel:       id,
		ProductLine:      "Medium Voltage",
		CommercialStatus: "Discontinued",
	}, strategy, score, string(strategy)+" reason")
}

func sumWeights(c core.CandidateMatch) float64 {
	total := 0.0
	for _, w := range c.EffectiveWeights {
		total += w
	}
	return total
}

func TestFuse(t *testing.T) {
	weights := DefaultWeights()

	t.Run("agreement bonus", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical:  {candidate("X-1", core.StrategyLexical, 0.6)},
			core.StrategySemantic: {candidate("X-1", core.StrategySemantic, 0.5)},
		}, weights, FusionContext{ObsolescenceOnly: true})

		require.Len(t, fused, 1)
		c := fused[0]
		assert.Greater(t, c.Confidence, 0.6)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		assert.InDelta(t, (0.40*0.6+0.35*0.5)/0.75+AgreementBonus, c.Confidence, 1e-9)
		assert.Equal(t, []core.StrategyName{core.StrategyLexical, core.StrategySemantic}, c.StrategiesAgreed)
		assert.Contains(t, c.MatchReasons, "bonus: 2 strategies agree")
		assert.Contains(t, c.MatchReasons, "lexical reason")
		assert.Contains(t, c.MatchReasons, "semantic reason")
	})

	t.Run("weights are renormalised", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical: {candidate("A", core.StrategyLexical, 0.8)},
			core.StrategyRange:   {candidate("A", core.StrategyRange, 0.4), candidate("B", core.StrategyRange, 0.9)},
		}, weights, FusionContext{ObsolescenceOnly: true})

		require.Len(t, fused, 2)
		for _, c := range fused {
			assert.InDelta(t, 1.0, sumWeights(c), 1e-6)
		}
		b := fused[0]
		require.Equal(t, "B", b.ProductID())
		assert.InDelta(t, 0.9, b.Confidence, 1e-9)
		assert.Equal(t, map[core.StrategyName]float64{core.StrategyRange: 1}, b.EffectiveWeights)
	})

	t.Run("max score per strategy", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical: {candidate("A", core.StrategyLexical, 0.4), candidate("A", core.StrategyLexical, 0.7)},
		}, weights, FusionContext{ObsolescenceOnly: true})
		require.Len(t, fused, 1)
		assert.InDelta(t, 0.7, fused[0].Confidence, 1e-9)
	})

	t.Run("containment and line hint bonuses", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical: {candidate("PIX2B", core.StrategyLexical, 0.5)},
		}, weights, FusionContext{
			Labels:           []string{"PIX 2B"},
			ProductLineHint:  "medium voltage",
			ObsolescenceOnly: true,
		})
		require.Len(t, fused, 1)
		assert.InDelta(t, 0.5+ContainmentBonus+LineHintBonus, fused[0].Confidence, 1e-9)
	})

	t.Run("active bonus only outside obsolescence search", func(t *testing.T) {
		active := candidate("A", core.StrategyLexical, 0.5)
		active.Entry.CommercialStatus = "Commercialised"
		results := map[core.StrategyName][]core.CandidateMatch{core.StrategyLexical: {active}}

		fused := Fuse(results, weights, FusionContext{ObsolescenceOnly: true, Rules: rules.RuleConfig{}})
		assert.InDelta(t, 0.5, fused[0].Confidence, 1e-9)

		fused = Fuse(results, weights, FusionContext{ObsolescenceOnly: false, Rules: rules.RuleConfig{}})
		assert.InDelta(t, 0.5+ActiveBonus, fused[0].Confidence, 1e-9)
	})

	t.Run("keyword agreement is configurable", func(t *testing.T) {
		results := map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical: {candidate("A", core.StrategyLexical, 0.5)},
			core.StrategyKeyword: {candidate("A", core.StrategyKeyword, 0.5)},
		}
		fused := Fuse(results, weights, FusionContext{ObsolescenceOnly: true})
		assert.InDelta(t, 0.5, fused[0].Confidence, 1e-9)

		fused = Fuse(results, weights, FusionContext{ObsolescenceOnly: true, KeywordCountsTowardAgreement: true})
		assert.InDelta(t, 0.5+AgreementBonus, fused[0].Confidence, 1e-9)
	})

	t.Run("capped at one", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical:  {candidate("PIX2B", core.StrategyLexical, 1)},
			core.StrategySemantic: {candidate("PIX2B", core.StrategySemantic, 1)},
		}, weights, FusionContext{Labels: []string{"PIX2B"}, ObsolescenceOnly: true})
		assert.Equal(t, 1.0, fused[0].Confidence)
	})

	t.Run("sorted with unique ids", func(t *testing.T) {
		fused := Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical: {candidate("B", core.StrategyLexical, 0.5), candidate("A", core.StrategyLexical, 0.5)},
			core.StrategyRange:   {candidate("C", core.StrategyRange, 0.9), candidate("A", core.StrategyRange, 0.5)},
		}, weights, FusionContext{ObsolescenceOnly: true})
		assert.Equal(t, []string{"C", "A", "B"}, candidateIDs(fused))
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		in := candidate("A", core.StrategyLexical, 0.5)
		Fuse(map[core.StrategyName][]core.CandidateMatch{
			core.StrategyLexical:  {in},
			core.StrategySemantic: {candidate("A", core.StrategySemantic, 0.5)},
		}, weights, FusionContext{ObsolescenceOnly: true})
		assert.Len(t, in.Scores, 1)
		assert.Equal(t, []string{"lexical reason"}, in.MatchReasons)
	})
}

func TestClassify(t *testing.T) {
	cands := []core.CandidateMatch{
		{Entry: core.CatalogEntry{ProductID: "A"}, Confidence: 1.0},
		{Entry: core.CatalogEntry{ProductID: "B"}, Confidence: 0.85},
		{Entry: core.CatalogEntry{ProductID: "C"}, Confidence: 0.75},
		{Entry: core.CatalogEntry{ProductID: "D"}, Confidence: 0.3},
	}
	primary, secondary, hist := Classify(cands, DefaultHighThreshold, DefaultMediumThreshold)
	assert.Equal(t, []string{"A", "B"}, candidateIDs(primary))
	assert.Equal(t, []string{"C"}, candidateIDs(secondary))
	assert.Equal(t, 4, hist.Total())
	assert.Equal(t, 1, hist.Buckets[9])
	assert.Equal(t, 1, hist.Buckets[8])
	assert.Equal(t, 1, hist.Buckets[7])
	assert.Equal(t, 1, hist.Buckets[3])
}
