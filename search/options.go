package search

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/rules"
	"github.com/prometheus/client_golang/prometheus"
)

// Default discovery settings.
const (
	DefaultHighThreshold      = 0.85
	DefaultMediumThreshold    = 0.70
	DefaultPerStrategyTimeout = 5 * time.Second
	DefaultLimit              = 50
)

// DefaultWeights returns the default fusion weight of each strategy.
func DefaultWeights() map[core.StrategyName]float64 {
	return map[core.StrategyName]float64{
		core.StrategyLexical:  0.40,
		core.StrategySemantic: 0.35,
		core.StrategyRange:    0.25,
		core.StrategyKeyword:  0.15,
	}
}

// DiscoverOptions tunes a single discovery.
type DiscoverOptions struct {
	// EnabledStrategies selects the strategies to run. Empty runs every registered strategy.
	EnabledStrategies []core.StrategyName
	// Weights is the fusion weight per strategy. Missing strategies take the
	// engine default; a zero weight disables the strategy.
	Weights         map[core.StrategyName]float64
	HighThreshold   float64
	MediumThreshold float64
	// ObsolescenceOnly enforces the business rules and disables the active status bonus.
	ObsolescenceOnly             bool
	KeywordCountsTowardAgreement bool
	PerStrategyTimeout           time.Duration
	Limit                        int
}

// DefaultDiscoverOptions returns the default discovery settings.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Weights:            DefaultWeights(),
		HighThreshold:      DefaultHighThreshold,
		MediumThreshold:    DefaultMediumThreshold,
		ObsolescenceOnly:   true,
		PerStrategyTimeout: DefaultPerStrategyTimeout,
		Limit:              DefaultLimit,
	}
}

// Merge returns o with zero-valued fields taken from defaults.
// The boolean fields are never inherited.
func (o DiscoverOptions) Merge(defaults DiscoverOptions) DiscoverOptions {
	if len(o.EnabledStrategies) == 0 {
		o.EnabledStrategies = slices.Clone(defaults.EnabledStrategies)
	}
	weights := maps.Clone(defaults.Weights)
	if weights == nil {
		weights = make(map[core.StrategyName]float64, len(o.Weights))
	}
	maps.Copy(weights, o.Weights)
	o.Weights = weights
	if o.HighThreshold == 0 {
		o.HighThreshold = defaults.HighThreshold
	}
	if o.MediumThreshold == 0 {
		o.MediumThreshold = defaults.MediumThreshold
	}
	if o.PerStrategyTimeout == 0 {
		o.PerStrategyTimeout = defaults.PerStrategyTimeout
	}
	if o.Limit == 0 {
		o.Limit = defaults.Limit
	}
	return o
}

// Validate checks the options against the registered strategy names.
func (o DiscoverOptions) Validate(registered []core.StrategyName) error {
	if !inUnit(o.HighThreshold) || !inUnit(o.MediumThreshold) {
		return invalidConfig("thresholds must be in (0,1], got high %v medium %v", o.HighThreshold, o.MediumThreshold)
	}
	if o.HighThreshold <= o.MediumThreshold {
		return invalidConfig("high threshold %v must exceed medium threshold %v", o.HighThreshold, o.MediumThreshold)
	}
	if o.PerStrategyTimeout <= 0 {
		return invalidConfig("per-strategy timeout must be positive, got %v", o.PerStrategyTimeout)
	}
	if o.Limit <= 0 {
		return invalidConfig("limit must be positive, got %d", o.Limit)
	}
	for name, w := range o.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return invalidConfig("weight of %s must be a non-negative number, got %v", name, w)
		}
	}
	for _, name := range o.EnabledStrategies {
		if !slices.Contains(registered, name) {
			return invalidConfig("strategy %q is not registered", name)
		}
	}
	if len(o.active(registered)) == 0 {
		return invalidConfig("no enabled strategy has a positive weight")
	}
	return nil
}

// active returns the enabled strategies with a positive weight, sorted.
func (o DiscoverOptions) active(registered []core.StrategyName) []core.StrategyName {
	enabled := o.EnabledStrategies
	if len(enabled) == 0 {
		enabled = registered
	}
	var names []core.StrategyName
	for _, name := range enabled {
		if o.Weights[name] > 0 && slices.Contains(registered, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func inUnit(f float64) bool {
	return f > 0 && f <= 1
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the engine logger. Nil selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithRules sets the business rules applied to fused candidates.
func WithRules(cfg rules.RuleConfig) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		e.rules = cfg
		return nil
	}
}

// WithKeywordHints enables the keyword strategy with the given hints.
func WithKeywordHints(hints []KeywordHint) Option {
	return func(e *Engine) error {
		for _, h := range hints {
			if err := h.validate(); err != nil {
				return err
			}
		}
		e.hints = slices.Clone(hints)
		return nil
	}
}

// WithNumericFields sets the attribute to catalog column mapping of the range strategy.
func WithNumericFields(fields []NumericField) Option {
	return func(e *Engine) error {
		if len(fields) == 0 {
			return invalidConfig("no numeric fields")
		}
		for _, f := range fields {
			if err := f.validate(); err != nil {
				return err
			}
		}
		e.numericFields = slices.Clone(fields)
		return nil
	}
}

// WithSemanticCutoff sets the minimum cosine similarity of semantic candidates.
func WithSemanticCutoff(cutoff float64) Option {
	return func(e *Engine) error {
		if !inUnit(cutoff) {
			return invalidConfig("semantic cutoff must be in (0,1], got %v", cutoff)
		}
		e.semanticCutoff = cutoff
		return nil
	}
}

// WithMaxCorpus bounds the rows embedded per request when no vector index is populated.
func WithMaxCorpus(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return invalidConfig("max corpus must be positive, got %d", n)
		}
		e.maxCorpus = n
		return nil
	}
}

// WithRangeTolerance sets the tolerance fraction of the range strategy.
func WithRangeTolerance(fraction float64) Option {
	return func(e *Engine) error {
		if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
			return invalidConfig("range tolerance must be in (0,1], got %v", fraction)
		}
		e.tolerance = fraction
		return nil
	}
}

// WithPoolSize sets the number of embedding workers.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			return invalidConfig("pool size must be positive, got %d", size)
		}
		e.poolSize = size
		return nil
	}
}

// WithMetrics registers discovery metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		m, err := NewMetrics(reg)
		if err != nil {
			return err
		}
		e.metrics = m
		return nil
	}
}

// WithDefaults sets the options that zero-valued DiscoverOptions fields inherit.
func WithDefaults(opts DiscoverOptions) Option {
	return func(e *Engine) error {
		e.defaults = opts.Merge(DefaultDiscoverOptions())
		return nil
	}
}

// WithStrategy registers an additional strategy. It replaces a built-in
// strategy of the same name.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) error {
		if s == nil || s.Name() == "" {
			return invalidConfig("strategy must be named")
		}
		e.extra = append(e.extra, s)
		return nil
	}
}
