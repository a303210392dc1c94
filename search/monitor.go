package search

import (
	"github.com/poiesic/rangefinder/core"
)

// DiscoveryMonitor provides hooks to observe a discovery.
// Hooks are called from the goroutine running Discover, never concurrently.
type DiscoveryMonitor interface {
	Start(query core.ProductDescriptor, opts DiscoverOptions)
	StrategyFinished(strategy core.StrategyName, candidates []core.CandidateMatch, err error)
	AfterFusion(candidates []core.CandidateMatch)
	AfterRules(included []core.CandidateMatch, excluded []core.Exclusion)
	Finish(result *core.DiscoveryResult)
}

// noopMonitor is a no-op implementation of DiscoveryMonitor
type noopMonitor struct{}

var _ DiscoveryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.ProductDescriptor, _ DiscoverOptions)                     {}
func (n *noopMonitor) StrategyFinished(_ core.StrategyName, _ []core.CandidateMatch, _ error) {}
func (n *noopMonitor) AfterFusion(_ []core.CandidateMatch)                                    {}
func (n *noopMonitor) AfterRules(_ []core.CandidateMatch, _ []core.Exclusion)                 {}
func (n *noopMonitor) Finish(_ *core.DiscoveryResult)                                         {}
