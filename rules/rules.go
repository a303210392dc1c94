package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/textmatch"
)

// DefaultActiveStatuses are the commercial statuses treated as currently
// available when a RuleConfig does not list its own.
var DefaultActiveStatuses = []string{"Active", "Available", "Commercialised", "Commercialized"}

// LineRule governs one product line.
type LineRule struct {
	// ExcludeIfStatusIn lists statuses that exclude a candidate of this line
	// from obsolescence results.
	ExcludeIfStatusIn []string `toml:"exclude_if_status_in"`
}

// RuleConfig is the declarative business rule set.
type RuleConfig struct {
	// Lines maps a product line name to its rule.
	Lines map[string]LineRule `toml:"lines"`

	// ActiveStatuses lists statuses that denote current commercial availability.
	// Empty selects DefaultActiveStatuses.
	ActiveStatuses []string `toml:"active_statuses"`
}

func normalize(s string) string {
	return strings.Join(strings.Fields(textmatch.Fold(s)), " ")
}

// Validate checks that every governed line is named and lists at least one status.
func (c RuleConfig) Validate() error {
	seen := make(map[string]string, len(c.Lines))
	for line, rule := range c.Lines {
		key := normalize(line)
		if key == "" {
			return fmt.Errorf("%w: empty product line name", ErrInvalidRule)
		}
		if other, dup := seen[key]; dup {
			return fmt.Errorf("%w: product lines %q and %q are the same line", ErrInvalidRule, other, line)
		}
		seen[key] = line
		if len(rule.ExcludeIfStatusIn) == 0 {
			return fmt.Errorf("%w: product line %q has no statuses", ErrInvalidRule, line)
		}
		for _, s := range rule.ExcludeIfStatusIn {
			if normalize(s) == "" {
				return fmt.Errorf("%w: product line %q has an empty status", ErrInvalidRule, line)
			}
		}
	}
	for _, s := range c.ActiveStatuses {
		if normalize(s) == "" {
			return fmt.Errorf("%w: empty active status", ErrInvalidRule)
		}
	}
	return nil
}

// Rule returns the rule governing a product line, if any.
func (c RuleConfig) Rule(productLine string) (string, LineRule, bool) {
	key := normalize(productLine)
	if key == "" {
		return "", LineRule{}, false
	}
	// Sorted so that the reported line name is stable.
	lines := make([]string, 0, len(c.Lines))
	for line := range c.Lines {
		lines = append(lines, line)
	}
	slices.Sort(lines)
	for _, line := range lines {
		if normalize(line) == key {
			return line, c.Lines[line], true
		}
	}
	return "", LineRule{}, false
}

// IsActive reports whether status denotes current commercial availability.
func (c RuleConfig) IsActive(status string) bool {
	statuses := c.ActiveStatuses
	if len(statuses) == 0 {
		statuses = DefaultActiveStatuses
	}
	return containsStatus(statuses, status)
}

func containsStatus(statuses []string, status string) bool {
	key := normalize(status)
	if key == "" {
		return false
	}
	return slices.ContainsFunc(statuses, func(s string) bool { return normalize(s) == key })
}

// Apply splits candidates into included and excluded.
//
// With obsolescenceOnly, a candidate whose product line is governed and whose
// status is in that line's exclusion list is excluded with a reason. Otherwise
// every candidate is included. Order is preserved and
// len(included)+len(excluded) == len(candidates).
func Apply(candidates []core.CandidateMatch, cfg RuleConfig, obsolescenceOnly bool) ([]core.CandidateMatch, []core.Exclusion) {
	included := make([]core.CandidateMatch, 0, len(candidates))
	var excluded []core.Exclusion

	for _, c := range candidates {
		if obsolescenceOnly {
			if line, rule, ok := cfg.Rule(c.Entry.ProductLine); ok && containsStatus(rule.ExcludeIfStatusIn, c.Entry.CommercialStatus) {
				excluded = append(excluded, core.Exclusion{
					ProductID: c.ProductID(),
					Reason: fmt.Sprintf("product line %q is governed and status %q is still commercially available",
						line, c.Entry.CommercialStatus),
				})
				continue
			}
		}
		included = append(included, c)
	}
	return included, excluded
}
