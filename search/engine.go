package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/poiesic/rangefinder/ai"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/rules"
	"github.com/poiesic/rangefinder/storage"
	"golang.org/x/sync/errgroup"
)

// Engine runs discoveries against a catalog. It is safe for concurrent use.
type Engine struct {
	repo     storage.CatalogRepository
	provider ai.EmbeddingProvider
	logger   *slog.Logger

	rules          rules.RuleConfig
	hints          []KeywordHint
	numericFields  []NumericField
	semanticCutoff float64
	maxCorpus      int
	tolerance      float64
	poolSize       int
	metrics        *Metrics
	defaults       DiscoverOptions
	extra          []Strategy

	strategies map[core.StrategyName]Strategy
	names      []core.StrategyName
	embeddings *EmbeddingPool
}

// NewEngine creates a discovery engine over repo. provider may be nil, in
// which case the semantic strategy is not registered. The keyword strategy
// is registered only when hints are configured.
func NewEngine(repo storage.CatalogRepository, provider ai.EmbeddingProvider, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	e := &Engine{
		repo:          repo,
		provider:      provider,
		logger:        slog.Default(),
		numericFields: DefaultNumericFields(),
		poolSize:      max(1, runtime.NumCPU()/2),
		defaults:      DefaultDiscoverOptions(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "discovery-engine")

	e.strategies = map[core.StrategyName]Strategy{
		core.StrategyLexical: NewLexicalStrategy(repo, 0, e.logger),
		core.StrategyRange:   NewNumericStrategy(repo, e.numericFields, e.tolerance, e.logger),
	}
	if provider != nil {
		var store storage.EmbeddingCache
		if c, ok := repo.(storage.EmbeddingCache); ok {
			store = c
		}
		pool, err := NewEmbeddingPool(provider.Embedder(), e.poolSize, store, e.logger)
		if err != nil {
			return nil, err
		}
		e.embeddings = pool
		e.strategies[core.StrategySemantic] = NewSemanticStrategy(repo, pool, e.semanticCutoff, e.maxCorpus, e.logger)
	}
	if len(e.hints) > 0 {
		kw, err := NewKeywordStrategy(repo, e.hints, e.logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.strategies[core.StrategyKeyword] = kw
	}
	for _, s := range e.extra {
		e.strategies[s.Name()] = s
	}
	for name := range e.strategies {
		e.names = append(e.names, name)
	}
	slices.Sort(e.names)
	return e, nil
}

// Strategies returns the registered strategy names, sorted.
func (e *Engine) Strategies() []core.StrategyName {
	return slices.Clone(e.names)
}

// Close releases the embedding workers and cache. The provider and
// repository are owned by the caller.
func (e *Engine) Close() {
	if e.embeddings != nil {
		e.embeddings.Close()
		e.embeddings = nil
	}
}

// Discover finds catalog rows matching query.
func (e *Engine) Discover(ctx context.Context, query core.ProductDescriptor, opts DiscoverOptions) (*core.DiscoveryResult, error) {
	return e.DiscoverWithMonitor(ctx, query, opts, nil)
}

type strategyOutcome struct {
	candidates []core.CandidateMatch
	err        error
	elapsed    time.Duration
}

// DiscoverWithMonitor is like Discover and reports its progress to monitor.
//
// Each enabled strategy with a positive weight runs concurrently under its
// own timeout. A strategy that fails or times out is recorded in the result
// and its weight is redistributed; the discovery fails with
// ErrRepositoryUnavailable only when no strategy contributed and at least one
// failed. Cancelling ctx aborts the discovery with ctx.Err().
func (e *Engine) DiscoverWithMonitor(ctx context.Context, query core.ProductDescriptor, opts DiscoverOptions, monitor DiscoveryMonitor) (*core.DiscoveryResult, error) {
	start := time.Now()
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	opts = opts.Merge(e.defaults)
	if err := opts.Validate(e.names); err != nil {
		e.metrics.observeDiscovery(outcomeInvalid, time.Since(start))
		return nil, err
	}
	if err := core.ValidateDescriptor(query); err != nil {
		e.metrics.observeDiscovery(outcomeInvalid, time.Since(start))
		return nil, err
	}
	monitor.Start(query, opts)

	active := opts.active(e.names)
	q := NewQuery(query, opts.Limit)
	outcomes := make([]strategyOutcome, len(active))

	// Strategy failures are recorded in outcomes; only caller cancellation
	// is returned through the group.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(active), 1))
	for i, name := range active {
		s := e.strategies[name]
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, opts.PerStrategyTimeout)
			defer cancel()
			began := time.Now()
			cands, err := s.Execute(sctx, q)
			if err == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
				err = context.DeadlineExceeded
			}
			outcomes[i] = strategyOutcome{candidates: cands, err: err, elapsed: time.Since(began)}
			return ctx.Err()
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.metrics.observeDiscovery(outcomeCancelled, time.Since(start))
		return nil, err
	}

	result := &core.DiscoveryResult{}
	results := make(map[core.StrategyName][]core.CandidateMatch, len(active))
	var failures []error
	for i, name := range active {
		o := outcomes[i]
		monitor.StrategyFinished(name, o.candidates, o.err)
		switch {
		case o.err == nil:
			results[name] = o.candidates
			result.StrategiesUsed = append(result.StrategiesUsed, name)
			e.metrics.observeStrategy(name, outcomeOK, o.elapsed)
		case errors.Is(o.err, ErrStrategySkipped):
			e.logger.Debug("strategy skipped", "strategy", name, "reason", o.err)
			result.StrategyFailures = append(result.StrategyFailures, core.StrategyFailure{
				Strategy: name,
				Reason:   o.err.Error(),
				Skipped:  true,
			})
			e.metrics.observeStrategy(name, outcomeSkipped, o.elapsed)
		default:
			err := o.err
			var se *StrategyError
			if !errors.As(err, &se) {
				err = &StrategyError{Strategy: name, Err: err}
			}
			e.logger.Warn("strategy failed", "strategy", name, "err", err)
			failures = append(failures, err)
			result.StrategyFailures = append(result.StrategyFailures, core.StrategyFailure{
				Strategy: name,
				Reason:   err.Error(),
			})
			e.metrics.observeStrategy(name, outcomeFailed, o.elapsed)
		}
	}
	if len(result.StrategiesUsed) == 0 && len(failures) > 0 {
		e.metrics.observeDiscovery(outcomeUnavailable, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, errors.Join(failures...))
	}

	fused := Fuse(results, opts.Weights, FusionContext{
		Labels:                       query.Labels(),
		ProductLineHint:              query.ProductLineHint,
		ObsolescenceOnly:             opts.ObsolescenceOnly,
		Rules:                        e.rules,
		KeywordCountsTowardAgreement: opts.KeywordCountsTowardAgreement,
	})
	monitor.AfterFusion(fused)

	included, excluded := rules.Apply(fused, e.rules, opts.ObsolescenceOnly)
	monitor.AfterRules(included, excluded)

	primary, secondary, hist := Classify(included, opts.HighThreshold, opts.MediumThreshold)
	primary = truncate(primary, opts.Limit)
	secondary = truncate(secondary, opts.Limit-len(primary))
	if len(primary) == opts.Limit {
		secondary = nil
	}

	result.PrimaryMatches = primary
	result.SecondaryMatches = secondary
	result.TotalFound = len(included)
	result.ConfidenceHistogram = hist
	result.Exclusions = excluded
	result.Elapsed = time.Since(start)

	e.logger.Debug("discovery finished",
		"strategies", len(result.StrategiesUsed),
		"candidates", len(fused),
		"excluded", len(excluded),
		"primary", len(primary),
		"secondary", len(secondary),
		"elapsed", result.Elapsed)
	e.metrics.observeDiscovery(outcomeOK, result.Elapsed)
	monitor.Finish(result)
	return result, nil
}
