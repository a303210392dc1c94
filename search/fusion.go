package search

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/rules"
	"github.com/poiesic/rangefinder/textmatch"
)

// Fusion bonuses, added to the weighted mean and capped at 1.0.
const (
	ContainmentBonus = 0.10
	LineHintBonus    = 0.05
	ActiveBonus      = 0.05
	AgreementBonus   = 0.10
)

// FusionContext carries the per-request inputs of the fusion bonuses.
type FusionContext struct {
	// Labels are the query's range and subrange labels.
	Labels          []string
	ProductLineHint string
	// ObsolescenceOnly disables the active status bonus.
	ObsolescenceOnly bool
	Rules            rules.RuleConfig
	// KeywordCountsTowardAgreement lets the keyword strategy count as an agreeing strategy.
	KeywordCountsTowardAgreement bool
}

// Fuse merges per-strategy candidates by product ID and computes each
// candidate's confidence. Strategies are visited in name order and the
// inputs are not modified.
//
// Confidence is the weighted mean of the strategies that scored the row,
// with weights renormalised over those strategies, plus bonuses. The result
// is sorted by confidence descending, then product ID.
func Fuse(results map[core.StrategyName][]core.CandidateMatch, weights map[core.StrategyName]float64, fc FusionContext) []core.CandidateMatch {
	byID := make(map[string]*core.CandidateMatch)
	var order []string

	for _, name := range slices.Sorted(maps.Keys(results)) {
		for _, c := range results[name] {
			score, ok := c.Scores[name]
			if !ok {
				continue
			}
			merged, seen := byID[c.ProductID()]
			if !seen {
				merged = &core.CandidateMatch{
					Entry:  c.Entry,
					Scores: make(map[core.StrategyName]float64),
				}
				byID[c.ProductID()] = merged
				order = append(order, c.ProductID())
			}
			if prev, ok := merged.Scores[name]; !ok || score > prev {
				merged.Scores[name] = score
			}
			merged.AddStrategy(name)
			merged.AddReasons(c.MatchReasons...)
		}
	}

	fused := make([]core.CandidateMatch, 0, len(order))
	for _, id := range order {
		c := byID[id]
		score(c, weights, fc)
		fused = append(fused, *c)
	}
	slices.SortFunc(fused, func(a, b core.CandidateMatch) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID(), b.ProductID())
	})
	return fused
}

func score(c *core.CandidateMatch, weights map[core.StrategyName]float64, fc FusionContext) {
	names := slices.Sorted(maps.Keys(c.Scores))

	var total float64
	for _, name := range names {
		if w := weights[name]; w > 0 {
			total += w
		}
	}
	c.EffectiveWeights = make(map[core.StrategyName]float64, len(names))
	var hybrid float64
	if total > 0 {
		for _, name := range names {
			w := weights[name]
			if w <= 0 {
				continue
			}
			c.EffectiveWeights[name] = w / total
			hybrid += w / total * c.Scores[name]
		}
	}

	bonus := 0.0
	for _, label := range fc.Labels {
		if textmatch.ContainsCanonical(c.Entry.RangeLabel, label) {
			bonus += ContainmentBonus
			c.AddReasons(fmt.Sprintf("bonus: range label %q contains %q", c.Entry.RangeLabel, label))
			break
		}
	}
	if fc.ProductLineHint != "" && sameLine(fc.ProductLineHint, c.Entry.ProductLine) {
		bonus += LineHintBonus
		c.AddReasons(fmt.Sprintf("bonus: product line %q matches hint", c.Entry.ProductLine))
	}
	if !fc.ObsolescenceOnly && fc.Rules.IsActive(c.Entry.CommercialStatus) {
		bonus += ActiveBonus
		c.AddReasons(fmt.Sprintf("bonus: status %q is active", c.Entry.CommercialStatus))
	}
	if agreed := agreeing(c.StrategiesAgreed, fc.KeywordCountsTowardAgreement); agreed >= 2 {
		bonus += AgreementBonus
		c.AddReasons(fmt.Sprintf("bonus: %d strategies agree", agreed))
	}

	c.Confidence = clamp01(hybrid + bonus)
}

func agreeing(strategies []core.StrategyName, countKeyword bool) int {
	n := 0
	for _, s := range strategies {
		if s == core.StrategyKeyword && !countKeyword {
			continue
		}
		n++
	}
	return n
}

// Classify splits fused candidates into confidence tiers.
// Candidates below medium are dropped from both tiers but every candidate is
// counted in the histogram. Input order is preserved within each tier.
func Classify(cands []core.CandidateMatch, high, medium float64) (primary, secondary []core.CandidateMatch, hist core.Histogram) {
	for _, c := range cands {
		hist.Add(c.Confidence)
		switch {
		case c.Confidence >= high:
			primary = append(primary, c)
		case c.Confidence >= medium:
			secondary = append(secondary, c)
		}
	}
	return primary, secondary, hist
}
