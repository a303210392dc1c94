package search

import (
	"errors"
	"time"

	"github.com/poiesic/rangefinder/core"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rangefinder"

// Outcome labels.
const (
	outcomeOK          = "ok"
	outcomeSkipped     = "skipped"
	outcomeFailed      = "failed"
	outcomeUnavailable = "unavailable"
	outcomeCancelled   = "cancelled"
	outcomeInvalid     = "invalid"
)

// Metrics holds the discovery collectors. A nil *Metrics records nothing.
type Metrics struct {
	discoveries       *prometheus.CounterVec
	discoveryDuration prometheus.Histogram
	strategyDuration  *prometheus.HistogramVec
	strategyOutcomes  *prometheus.CounterVec
}

// NewMetrics creates the discovery collectors and registers them with reg.
// Collectors already registered by another engine are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, invalidConfig("metrics registerer is nil")
	}
	m := &Metrics{}
	var err error
	if m.discoveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "discoveries_total",
		Help:      "Discoveries by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.discoveryDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "discovery_duration_seconds",
		Help:      "Wall time of successful discoveries.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.strategyDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "strategy_duration_seconds",
		Help:      "Wall time of each strategy execution.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"})); err != nil {
		return nil, err
	}
	if m.strategyOutcomes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "strategy_outcomes_total",
		Help:      "Strategy executions by outcome.",
	}, []string{"strategy", "outcome"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeDiscovery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.discoveries.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK {
		m.discoveryDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeStrategy(name core.StrategyName, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.strategyDuration.WithLabelValues(string(name)).Observe(elapsed.Seconds())
	m.strategyOutcomes.WithLabelValues(string(name), outcome).Inc()
}
