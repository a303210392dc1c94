package rules

import (
	"testing"

	"github.com/poiesic/rangefinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, line, status string) core.CandidateMatch {
	return core.NewCandidate(core.CatalogEntry{
		ProductID:        id,
		RangeLabel:       id,
		ProductLine:      line,
		CommercialStatus: status,
	}, core.StrategyLexical, 0.9)
}

func mvRules() RuleConfig {
	return RuleConfig{
		Lines: map[string]LineRule{
			"Medium Voltage": {ExcludeIfStatusIn: []string{"Commercialised", "Active"}},
		},
	}
}

func TestApply(t *testing.T) {
	cands := []core.CandidateMatch{
		candidate("MV-1", "Medium Voltage", "Discontinued"),
		candidate("MV-2", "Medium Voltage", "Commercialised"),
		candidate("MV-3", "medium  voltage", "ACTIVE"),
		candidate("LV-1", "Low Voltage", "Active"),
	}

	t.Run("obsolescence only excludes governed active rows", func(t *testing.T) {
		included, excluded := Apply(cands, mvRules(), true)

		ids := make([]string, len(included))
		for i, c := range included {
			ids[i] = c.ProductID()
		}
		assert.Equal(t, []string{"MV-1", "LV-1"}, ids)

		require.Len(t, excluded, 2)
		assert.Equal(t, "MV-2", excluded[0].ProductID)
		assert.Equal(t, `product line "Medium Voltage" is governed and status "Commercialised" is still commercially available`, excluded[0].Reason)
		assert.Equal(t, "MV-3", excluded[1].ProductID)
	})

	t.Run("unrestricted search keeps everything", func(t *testing.T) {
		included, excluded := Apply(cands, mvRules(), false)
		assert.Len(t, included, len(cands))
		assert.Empty(t, excluded)
	})

	t.Run("total for every input", func(t *testing.T) {
		for _, only := range []bool{true, false} {
			included, excluded := Apply(cands, mvRules(), only)
			assert.Equal(t, len(cands), len(included)+len(excluded))
		}
	})

	t.Run("no governed lines", func(t *testing.T) {
		included, excluded := Apply(cands, RuleConfig{}, true)
		assert.Len(t, included, len(cands))
		assert.Empty(t, excluded)
	})

	t.Run("accent insensitive line names", func(t *testing.T) {
		cfg := RuleConfig{Lines: map[string]LineRule{"Moyenne Tension": {ExcludeIfStatusIn: []string{"Commercialisé"}}}}
		_, excluded := Apply([]core.CandidateMatch{candidate("X", "MOYENNE TENSION", "commercialise")}, cfg, true)
		assert.Len(t, excluded, 1)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RuleConfig
		wantErr bool
	}{
		{"empty config", RuleConfig{}, false},
		{"valid", mvRules(), false},
		{"blank line", RuleConfig{Lines: map[string]LineRule{" ": {ExcludeIfStatusIn: []string{"Active"}}}}, true},
		{"no statuses", RuleConfig{Lines: map[string]LineRule{"MV": {}}}, true},
		{"blank status", RuleConfig{Lines: map[string]LineRule{"MV": {ExcludeIfStatusIn: []string{""}}}}, true},
		{"duplicate lines", RuleConfig{Lines: map[string]LineRule{
			"MV": {ExcludeIfStatusIn: []string{"Active"}},
			"mv": {ExcludeIfStatusIn: []string{"Active"}},
		}}, true},
		{"blank active status", RuleConfig{ActiveStatuses: []string{" "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsActive(t *testing.T) {
	assert.True(t, RuleConfig{}.IsActive("commercialised"))
	assert.False(t, RuleConfig{}.IsActive("Discontinued"))
	assert.False(t, RuleConfig{}.IsActive(""))

	cfg := RuleConfig{ActiveStatuses: []string{"In Production"}}
	assert.True(t, cfg.IsActive("in production"))
	assert.False(t, cfg.IsActive("Active"))
}
