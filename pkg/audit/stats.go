package audit

import (
	"sort"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

// Statistics aggregates decision, operation and risk-level counts plus the
// mean evaluation time and the ten most-matched rules. A nil bound leaves
// that side of the window open.
func (l *Log) Statistics(from, to *time.Time) types.Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := types.Statistics{
		ByDecision:  make(map[types.Decision]int),
		ByOperation: make(map[types.Operation]int),
		ByRiskLevel: make(map[types.RiskLevel]int),
	}
	if from != nil {
		stats.PeriodStart = *from
	}
	if to != nil {
		stats.PeriodEnd = *to
	}

	ruleCounts := make(map[string]int)
	var totalEval time.Duration

	for _, e := range l.entries {
		ts := e.Context.Timestamp
		if from != nil && ts.Before(*from) {
			continue
		}
		if to != nil && ts.After(*to) {
			continue
		}

		stats.Total++
		stats.ByDecision[e.Result.Decision]++
		stats.ByOperation[e.Context.Operation]++
		stats.ByRiskLevel[e.Result.RiskLevel]++
		totalEval += e.Result.EvaluationTime
		if e.Result.MatchedRule != nil {
			ruleCounts[e.Result.MatchedRule.ID]++
		}

		if stats.PeriodStart.IsZero() || ts.Before(stats.PeriodStart) {
			stats.PeriodStart = ts
		}
		if ts.After(stats.PeriodEnd) {
			stats.PeriodEnd = ts
		}
	}

	if stats.Total > 0 {
		stats.AvgEvaluationTime = totalEval / time.Duration(stats.Total)
	}

	for id, count := range ruleCounts {
		stats.TopRules = append(stats.TopRules, types.RuleCount{RuleID: id, Count: count})
	}
	sort.Slice(stats.TopRules, func(i, j int) bool {
		if stats.TopRules[i].Count != stats.TopRules[j].Count {
			return stats.TopRules[i].Count > stats.TopRules[j].Count
		}
		return stats.TopRules[i].RuleID < stats.TopRules[j].RuleID
	})
	if len(stats.TopRules) > 10 {
		stats.TopRules = stats.TopRules[:10]
	}

	return stats
}
