package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

const (
	// suggestMinOccurrences is how often an (operation, extension) pair must
	// appear in the window before it is worth proposing a rule.
	suggestMinOccurrences = 5
	// suggestDominance is the share one decision must reach within a group.
	suggestDominance = 0.8
	// suggestPriority keeps mined rules below the built-in deny rules.
	suggestPriority = 100
)

type suggestionGroup struct {
	operation types.Operation
	extension string
	total     int
	decisions map[types.Decision]int
}

// SuggestRules mines the audit log for (operation, file extension) pairs
// whose outcomes are consistent enough to become a standing rule. Candidates
// are returned without being persisted anywhere.
func (l *Log) SuggestRules(lookback time.Duration) []types.PermissionRule {
	cutoff := l.clock.Now().Add(-lookback)

	l.mu.RLock()
	groups := make(map[string]*suggestionGroup)
	for _, e := range l.entries {
		if e.Context.Timestamp.Before(cutoff) {
			continue
		}
		ext := types.FileExtension(e.Context.URI)
		if ext == "" {
			continue
		}
		key := string(e.Context.Operation) + "|" + ext
		g, ok := groups[key]
		if !ok {
			g = &suggestionGroup{
				operation: e.Context.Operation,
				extension: ext,
				decisions: make(map[types.Decision]int),
			}
			groups[key] = g
		}
		g.total++
		g.decisions[e.Result.Decision]++
	}
	l.mu.RUnlock()

	var suggestions []types.PermissionRule
	for _, g := range groups {
		if g.total < suggestMinOccurrences {
			continue
		}
		dominant, count := dominantDecision(g.decisions)
		if float64(count) < suggestDominance*float64(g.total) {
			continue
		}

		risk := types.RiskMedium
		if dominant == types.DecisionAllow {
			risk = types.RiskLow
		}
		suggestions = append(suggestions, types.PermissionRule{
			Name:        fmt.Sprintf("Auto-%s %s for .%s files", dominant, g.operation, g.extension),
			Description: fmt.Sprintf("Suggested from %d consistent decisions in the recent audit history", g.total),
			Operation:   g.operation,
			Scope:       types.ScopeFile,
			Decision:    dominant,
			RiskLevel:   risk,
			Conditions: []types.RuleCondition{{
				Type:     types.CondFileExtension,
				Operator: types.OperatorEquals,
				Value:    g.extension,
			}},
			Priority: suggestPriority,
			Enabled:  true,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].Name < suggestions[j].Name
	})
	return suggestions
}

func dominantDecision(counts map[types.Decision]int) (types.Decision, int) {
	var best types.Decision
	bestCount := -1
	for d, c := range counts {
		if c > bestCount || (c == bestCount && d < best) {
			best = d
			bestCount = c
		}
	}
	return best, bestCount
}
