package audit

import (
	"context"
	"testing"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

func TestStatisticsAggregation(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(100)

	ruleA := &types.PermissionRule{ID: "rul_a"}
	ruleB := &types.PermissionRule{ID: "rul_b"}

	add := func(ts time.Time, op types.Operation, decision types.Decision, rule *types.PermissionRule, eval time.Duration) {
		e := entryAt(ts, op, "/f.go", decision)
		e.Result.MatchedRule = rule
		e.Result.EvaluationTime = eval
		l.Append(ctx, e)
	}

	add(baseTime, types.OpRead, types.DecisionAllow, ruleA, 2*time.Millisecond)
	add(baseTime.Add(time.Minute), types.OpRead, types.DecisionAllow, ruleA, 4*time.Millisecond)
	add(baseTime.Add(2*time.Minute), types.OpWrite, types.DecisionDeny, ruleB, 6*time.Millisecond)

	stats := l.Statistics(nil, nil)
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.ByDecision[types.DecisionAllow] != 2 || stats.ByDecision[types.DecisionDeny] != 1 {
		t.Fatalf("unexpected decision counts %+v", stats.ByDecision)
	}
	if stats.ByOperation[types.OpRead] != 2 || stats.ByOperation[types.OpWrite] != 1 {
		t.Fatalf("unexpected operation counts %+v", stats.ByOperation)
	}
	if stats.AvgEvaluationTime != 4*time.Millisecond {
		t.Fatalf("unexpected mean evaluation time %v", stats.AvgEvaluationTime)
	}
	if len(stats.TopRules) != 2 || stats.TopRules[0].RuleID != "rul_a" || stats.TopRules[0].Count != 2 {
		t.Fatalf("unexpected top rules %+v", stats.TopRules)
	}
	if !stats.PeriodStart.Equal(baseTime) || !stats.PeriodEnd.Equal(baseTime.Add(2*time.Minute)) {
		t.Fatalf("unexpected period bounds %v .. %v", stats.PeriodStart, stats.PeriodEnd)
	}
}

func TestStatisticsWindow(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(100)

	l.Append(ctx, entryAt(baseTime, types.OpRead, "/a.go", types.DecisionAllow))
	l.Append(ctx, entryAt(baseTime.Add(time.Hour), types.OpRead, "/b.go", types.DecisionAllow))
	l.Append(ctx, entryAt(baseTime.Add(2*time.Hour), types.OpRead, "/c.go", types.DecisionAllow))

	from := baseTime.Add(30 * time.Minute)
	to := baseTime.Add(90 * time.Minute)
	stats := l.Statistics(&from, &to)
	if stats.Total != 1 {
		t.Fatalf("expected 1 entry in window, got %d", stats.Total)
	}
	if !stats.PeriodStart.Equal(from) || !stats.PeriodEnd.Equal(to) {
		t.Fatalf("explicit bounds must be kept: %v .. %v", stats.PeriodStart, stats.PeriodEnd)
	}
}

func TestStatisticsEmpty(t *testing.T) {
	l := newTestLog(100)
	stats := l.Statistics(nil, nil)
	if stats.Total != 0 || stats.AvgEvaluationTime != 0 || len(stats.TopRules) != 0 {
		t.Fatalf("unexpected stats for empty log %+v", stats)
	}
}
