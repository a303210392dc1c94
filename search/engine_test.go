package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/rangefinder/ai/mock"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/rules"
	"github.com/poiesic/rangefinder/storage"
	catalogstore "github.com/poiesic/rangefinder/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, repo storage.CatalogRepository, opts ...Option) *Engine {
	t.Helper()
	provider := mock.NewMockProviderWithEmbedder(pinnedEmbedder(examplePins(t)))
	e, err := NewEngine(repo, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func mediumVoltageRules() rules.RuleConfig {
	return rules.RuleConfig{Lines: map[string]rules.LineRule{
		"Medium Voltage": {ExcludeIfStatusIn: []string{"Commercialised", "Active"}},
	}}
}

// slowStrategy blocks until its context is done.
type slowStrategy struct{}

func (slowStrategy) Name() core.StrategyName { return "slow" }

func (slowStrategy) Execute(ctx context.Context, _ Query) ([]core.CandidateMatch, error) {
	<-ctx.Done()
	return nil, &StrategyError{Strategy: "slow", Err: ctx.Err()}
}

// fixedStrategy returns the same candidates for every query.
type fixedStrategy struct {
	name  core.StrategyName
	cands []core.CandidateMatch
}

func (f fixedStrategy) Name() core.StrategyName { return f.name }

func (f fixedStrategy) Execute(context.Context, Query) ([]core.CandidateMatch, error) {
	return f.cands, nil
}

type recordingMonitor struct {
	started  int
	finished map[core.StrategyName]error
	fused    int
	included int
	excluded int
	result   *core.DiscoveryResult
}

func (m *recordingMonitor) Start(core.ProductDescriptor, DiscoverOptions) { m.started++ }

func (m *recordingMonitor) StrategyFinished(name core.StrategyName, _ []core.CandidateMatch, err error) {
	if m.finished == nil {
		m.finished = make(map[core.StrategyName]error)
	}
	m.finished[name] = err
}

func (m *recordingMonitor) AfterFusion(c []core.CandidateMatch) { m.fused = len(c) }

func (m *recordingMonitor) AfterRules(in []core.CandidateMatch, ex []core.Exclusion) {
	m.included, m.excluded = len(in), len(ex)
}

func (m *recordingMonitor) Finish(r *core.DiscoveryResult) { m.result = r }

func TestNewEngine(t *testing.T) {
	catalog := newTestCatalog(t)

	t.Run("repository required", func(t *testing.T) {
		_, err := NewEngine(nil, nil)
		assert.ErrorIs(t, err, ErrRepositoryRequired)
	})

	t.Run("without provider", func(t *testing.T) {
		e, err := NewEngine(catalog, nil)
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, []core.StrategyName{core.StrategyLexical, core.StrategyRange}, e.Strategies())
	})

	t.Run("all strategies", func(t *testing.T) {
		e := newTestEngine(t, catalog, WithKeywordHints([]KeywordHint{galaxyHint()}))
		assert.Equal(t, allStrategies, e.Strategies())
	})

	t.Run("invalid options", func(t *testing.T) {
		for name, opt := range map[string]Option{
			"cutoff":    WithSemanticCutoff(1.5),
			"corpus":    WithMaxCorpus(0),
			"tolerance": WithRangeTolerance(-1),
			"pool":      WithPoolSize(0),
			"fields":    WithNumericFields(nil),
			"rules":     WithRules(rules.RuleConfig{Lines: map[string]rules.LineRule{"MV": {}}}),
			"hints":     WithKeywordHints([]KeywordHint{{Keyword: "ups"}}),
			"strategy":  WithStrategy(nil),
		} {
			t.Run(name, func(t *testing.T) {
				_, err := NewEngine(catalog, nil, opt)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			})
		}
	})
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	t.Run("identifier with separator", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		result, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, DefaultDiscoverOptions())
		require.NoError(t, err)

		require.NotEmpty(t, result.PrimaryMatches)
		top := result.PrimaryMatches[0]
		assert.Equal(t, "PIX2B-001", top.ProductID())
		assert.GreaterOrEqual(t, top.Confidence, 0.80)

		for _, c := range append(result.PrimaryMatches, result.SecondaryMatches...) {
			assert.NotEqual(t, "PIX2C-002", c.ProductID())
		}
		assert.Equal(t, []core.StrategyName{core.StrategyLexical, core.StrategySemantic}, result.StrategiesUsed)
		require.Len(t, result.StrategyFailures, 1)
		assert.Equal(t, core.StrategyRange, result.StrategyFailures[0].Strategy)
		assert.True(t, result.StrategyFailures[0].Skipped)
	})

	t.Run("numeric specification", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		result, err := e.Discover(ctx, core.ProductDescriptor{
			RangeLabel:   "SM6",
			NumericSpecs: map[string]string{"voltage": "12 – 17.5kV"},
		}, DefaultDiscoverOptions())
		require.NoError(t, err)
		assert.Contains(t, result.StrategiesUsed, core.StrategyRange)

		byID := make(map[string]core.CandidateMatch)
		for _, c := range result.PrimaryMatches {
			byID[c.ProductID()] = c
		}
		sm6, ok := byID["SM6-24-100"]
		require.True(t, ok)
		score, ok := sm6.Range()
		require.True(t, ok)
		assert.Equal(t, 1.0, score)
		assert.Equal(t, 1.0, sm6.Confidence)
		assert.Contains(t, sm6.StrategiesAgreed, core.StrategyLexical)
		assert.NotContains(t, byID, "RM6-36-200")
	})

	t.Run("provider unavailable", func(t *testing.T) {
		// A fresh catalog: the shared one already caches query embeddings.
		e, err := NewEngine(newTestCatalog(t), mock.NewUnavailableProvider())
		require.NoError(t, err)
		defer e.Close()

		result, err := e.Discover(ctx, core.ProductDescriptor{
			RangeLabel:   "PIX 2B",
			NumericSpecs: map[string]string{"voltage": "17.5 kV"},
		}, DefaultDiscoverOptions())
		require.NoError(t, err)
		assert.Equal(t, []core.StrategyName{core.StrategyLexical, core.StrategyRange}, result.StrategiesUsed)
		assert.NotContains(t, result.StrategiesUsed, core.StrategySemantic)
		assert.True(t, result.Degraded())

		require.Len(t, result.StrategyFailures, 1)
		assert.Equal(t, core.StrategySemantic, result.StrategyFailures[0].Strategy)
		assert.True(t, result.StrategyFailures[0].Skipped)

		require.NotEmpty(t, result.PrimaryMatches)
		top := result.PrimaryMatches[0]
		assert.Equal(t, "PIX2B-001", top.ProductID())
		assert.InDelta(t, 1.0, sumWeights(top), 1e-6)
		assert.NotContains(t, top.EffectiveWeights, core.StrategySemantic)
	})

	t.Run("deterministic", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		query := core.ProductDescriptor{
			RangeLabel:   "PIX 2B",
			Description:  "switchgear",
			NumericSpecs: map[string]string{"voltage": "12 – 24 kV"},
		}
		first, err := e.Discover(ctx, query, DefaultDiscoverOptions())
		require.NoError(t, err)
		for range 5 {
			again, err := e.Discover(ctx, query, DefaultDiscoverOptions())
			require.NoError(t, err)
			again.Elapsed = first.Elapsed
			assert.Equal(t, first, again)
		}
	})

	t.Run("no duplicates and weights sum to one", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		opts := DefaultDiscoverOptions()
		opts.MediumThreshold = 0.01
		opts.HighThreshold = 0.02
		result, err := e.Discover(ctx, core.ProductDescriptor{
			RangeLabel:   "PIX 2B",
			Description:  "switchgear",
			NumericSpecs: map[string]string{"voltage": "12 – 24 kV"},
		}, opts)
		require.NoError(t, err)

		seen := make(map[string]bool)
		for _, c := range append(result.PrimaryMatches, result.SecondaryMatches...) {
			assert.False(t, seen[c.ProductID()], "duplicate %s", c.ProductID())
			seen[c.ProductID()] = true
			assert.InDelta(t, 1.0, sumWeights(c), 1e-6)
			assert.GreaterOrEqual(t, c.Confidence, 0.0)
			assert.LessOrEqual(t, c.Confidence, 1.0)
		}
		assert.Equal(t, result.TotalFound, result.ConfidenceHistogram.Total())
	})

	t.Run("business rules", func(t *testing.T) {
		e := newTestEngine(t, catalog, WithRules(mediumVoltageRules()))
		query := core.ProductDescriptor{NumericSpecs: map[string]string{"voltage": "24 kV"}}

		opts := DefaultDiscoverOptions()
		result, err := e.Discover(ctx, query, opts)
		require.NoError(t, err)
		require.Len(t, result.Exclusions, 1)
		assert.Equal(t, "PIX2C-002", result.Exclusions[0].ProductID)
		assert.Equal(t, `product line "Medium Voltage" is governed and status "Commercialised" is still commercially available`,
			result.Exclusions[0].Reason)
		for _, c := range append(result.PrimaryMatches, result.SecondaryMatches...) {
			assert.NotEqual(t, "PIX2C-002", c.ProductID())
		}

		opts.ObsolescenceOnly = false
		result, err = e.Discover(ctx, query, opts)
		require.NoError(t, err)
		assert.Empty(t, result.Exclusions)
		assert.Contains(t, candidateIDs(result.PrimaryMatches), "PIX2C-002")
	})

	t.Run("disabled strategy", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		opts := DefaultDiscoverOptions()
		opts.EnabledStrategies = []core.StrategyName{core.StrategyLexical}
		result, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, opts)
		require.NoError(t, err)
		assert.Equal(t, []core.StrategyName{core.StrategyLexical}, result.StrategiesUsed)
		assert.Empty(t, result.StrategyFailures)
		for _, c := range result.PrimaryMatches {
			assert.Equal(t, map[core.StrategyName]float64{core.StrategyLexical: 1}, c.EffectiveWeights)
		}
	})

	t.Run("limit", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		opts := DefaultDiscoverOptions()
		opts.MediumThreshold = 0.01
		opts.HighThreshold = 0.02
		opts.Limit = 2
		result, err := e.Discover(ctx, core.ProductDescriptor{NumericSpecs: map[string]string{"voltage": "7.2 – 36 kV"}}, opts)
		require.NoError(t, err)
		assert.Len(t, append(result.PrimaryMatches, result.SecondaryMatches...), 2)
		assert.GreaterOrEqual(t, result.TotalFound, 2)
	})

	t.Run("strategy timeout", func(t *testing.T) {
		e := newTestEngine(t, catalog, WithStrategy(slowStrategy{}))
		opts := DefaultDiscoverOptions()
		opts.Weights["slow"] = 0.5
		opts.PerStrategyTimeout = 200 * time.Millisecond
		result, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, opts)
		require.NoError(t, err)
		assert.NotContains(t, result.StrategiesUsed, core.StrategyName("slow"))

		var failure *core.StrategyFailure
		for i := range result.StrategyFailures {
			if result.StrategyFailures[i].Strategy == "slow" {
				failure = &result.StrategyFailures[i]
			}
		}
		require.NotNil(t, failure)
		assert.False(t, failure.Skipped)
		assert.Contains(t, failure.Reason, context.DeadlineExceeded.Error())
		require.NotEmpty(t, result.PrimaryMatches)
		assert.Equal(t, "PIX2B-001", result.PrimaryMatches[0].ProductID())
	})

	t.Run("registered strategy", func(t *testing.T) {
		extra := fixedStrategy{name: "catalog-alias", cands: []core.CandidateMatch{
			core.NewCandidate(entryByID(t, "GVM-010"), "catalog-alias", 0.95, "alias table"),
		}}
		e := newTestEngine(t, catalog, WithStrategy(extra))
		opts := DefaultDiscoverOptions()
		opts.EnabledStrategies = []core.StrategyName{"catalog-alias"}
		opts.Weights["catalog-alias"] = 1
		result, err := e.Discover(ctx, core.ProductDescriptor{Description: "Galaxy UPS"}, opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"GVM-010"}, candidateIDs(result.PrimaryMatches))
	})

	t.Run("caller cancellation", func(t *testing.T) {
		e := newTestEngine(t, catalog)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Discover(cctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, DefaultDiscoverOptions())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancellation during strategies", func(t *testing.T) {
		e := newTestEngine(t, catalog, WithStrategy(slowStrategy{}))
		opts := DefaultDiscoverOptions()
		opts.Weights["slow"] = 0.5
		opts.PerStrategyTimeout = 10 * time.Second
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		began := time.Now()
		_, err := e.Discover(cctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, opts)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(began), 5*time.Second)
	})

	t.Run("repository unavailable", func(t *testing.T) {
		repo := &fakeRepo{
			textFunc: func(context.Context, []string, []string, int) ([]core.CatalogEntry, error) {
				return nil, storage.ErrUnavailable
			},
			numericFunc: func(context.Context, string, float64, float64, int) ([]core.CatalogEntry, error) {
				return nil, storage.ErrUnavailable
			},
		}
		e, err := NewEngine(repo, nil)
		require.NoError(t, err)
		defer e.Close()

		_, err = e.Discover(ctx, core.ProductDescriptor{
			RangeLabel:   "PIX 2B",
			NumericSpecs: map[string]string{"voltage": "24 kV"},
		}, DefaultDiscoverOptions())
		require.ErrorIs(t, err, ErrRepositoryUnavailable)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
		var se *StrategyError
		assert.ErrorAs(t, err, &se)
	})

	t.Run("partial failure is not fatal", func(t *testing.T) {
		repo := &fakeRepo{
			textFunc: func(context.Context, []string, []string, int) ([]core.CatalogEntry, error) {
				return nil, errors.New("connection reset")
			},
			numericFunc: func(context.Context, string, float64, float64, int) ([]core.CatalogEntry, error) {
				return []core.CatalogEntry{entryByID(t, "SM6-24-100")}, nil
			},
		}
		e, err := NewEngine(repo, nil)
		require.NoError(t, err)
		defer e.Close()

		result, err := e.Discover(ctx, core.ProductDescriptor{
			RangeLabel:   "SM6",
			NumericSpecs: map[string]string{"voltage": "15 kV"},
		}, DefaultDiscoverOptions())
		require.NoError(t, err)
		assert.Equal(t, []core.StrategyName{core.StrategyRange}, result.StrategiesUsed)
		require.Len(t, result.StrategyFailures, 1)
		assert.Equal(t, core.StrategyLexical, result.StrategyFailures[0].Strategy)
		assert.False(t, result.StrategyFailures[0].Skipped)
	})

	t.Run("invalid input", func(t *testing.T) {
		e := newTestEngine(t, catalog)

		opts := DefaultDiscoverOptions()
		opts.HighThreshold, opts.MediumThreshold = 0.5, 0.7
		_, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, opts)
		assert.ErrorIs(t, err, ErrInvalidConfig)

		_, err = e.Discover(ctx, core.ProductDescriptor{}, DefaultDiscoverOptions())
		assert.ErrorIs(t, err, core.ErrEmptyDescriptor)
	})

	t.Run("monitor", func(t *testing.T) {
		e := newTestEngine(t, catalog, WithRules(mediumVoltageRules()))
		m := &recordingMonitor{}
		result, err := e.DiscoverWithMonitor(ctx, core.ProductDescriptor{
			RangeLabel:   "PIX 2C",
			NumericSpecs: map[string]string{"voltage": "24 kV"},
		}, DefaultDiscoverOptions(), m)
		require.NoError(t, err)

		assert.Equal(t, 1, m.started)
		assert.Len(t, m.finished, 3)
		assert.NoError(t, m.finished[core.StrategyLexical])
		assert.Equal(t, m.fused, m.included+m.excluded)
		assert.Equal(t, 1, m.excluded)
		assert.Same(t, result, m.result)
	})
}

func TestDiscoverManyNearMisses(t *testing.T) {
	ctx := context.Background()
	catalog, err := catalogstore.NewMemoryCatalog()
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	entries := make([]core.CatalogEntry, 0, 301)
	for i := range 300 {
		entries = append(entries, core.CatalogEntry{
			ProductID:        fmt.Sprintf("A%03d", i),
			RangeLabel:       "PIX2C",
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Discontinued",
			Numeric:          map[string]float64{"voltage_kv": 11},
		})
	}
	entries = append(entries, core.CatalogEntry{
		ProductID:        "PIX2B-001",
		RangeLabel:       "PIX2B",
		ProductLine:      "Medium Voltage",
		CommercialStatus: "Discontinued",
		Numeric:          map[string]float64{"voltage_kv": 15},
	})
	require.NoError(t, catalog.AddEntries(ctx, entries...))

	e, err := NewEngine(catalog, nil)
	require.NoError(t, err)
	defer e.Close()

	t.Run("label", func(t *testing.T) {
		result, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, DefaultDiscoverOptions())
		require.NoError(t, err)
		require.NotEmpty(t, result.PrimaryMatches)
		assert.Equal(t, "PIX2B-001", result.PrimaryMatches[0].ProductID())
	})

	t.Run("voltage", func(t *testing.T) {
		result, err := e.Discover(ctx, core.ProductDescriptor{
			NumericSpecs: map[string]string{"voltage": "12 – 17.5kV"},
		}, DefaultDiscoverOptions())
		require.NoError(t, err)
		require.NotEmpty(t, result.PrimaryMatches)
		assert.Equal(t, "PIX2B-001", result.PrimaryMatches[0].ProductID())
	})
}

func TestEngineMetrics(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)
	reg := prometheus.NewRegistry()

	e := newTestEngine(t, catalog, WithMetrics(reg))
	_, err := e.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, DefaultDiscoverOptions())
	require.NoError(t, err)
	_, err = e.Discover(ctx, core.ProductDescriptor{}, DefaultDiscoverOptions())
	require.Error(t, err)

	m := e.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discoveries.WithLabelValues(outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discoveries.WithLabelValues(outcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategyOutcomes.WithLabelValues(string(core.StrategyLexical), outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategyOutcomes.WithLabelValues(string(core.StrategyRange), outcomeSkipped)))

	t.Run("second engine reuses collectors", func(t *testing.T) {
		other := newTestEngine(t, catalog, WithMetrics(reg))
		_, err := other.Discover(ctx, core.ProductDescriptor{RangeLabel: "PIX 2B"}, DefaultDiscoverOptions())
		require.NoError(t, err)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.discoveries.WithLabelValues(outcomeOK)))
	})

	t.Run("nil metrics", func(t *testing.T) {
		var nilMetrics *Metrics
		assert.NotPanics(t, func() {
			nilMetrics.observeDiscovery(outcomeOK, time.Second)
			nilMetrics.observeStrategy(core.StrategyLexical, outcomeOK, time.Second)
		})
	})

	t.Run("nil registerer", func(t *testing.T) {
		_, err := NewMetrics(nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
