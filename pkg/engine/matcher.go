package engine

import (
	"sort"

	"github.com/permgate-org/permgate/pkg/types"
)

// ruleMatches applies the exact-operation check, the scope hierarchy and
// the AND over all conditions. A rule with no conditions matches every
// context its operation and scope cover; this blanket-rule behavior is
// deliberate and covered by tests.
func (env *conditionEnv) ruleMatches(rule types.PermissionRule, pctx types.PermissionContext) bool {
	if rule.Operation != pctx.Operation {
		return false
	}
	if !rule.Scope.Covers(pctx.Scope) {
		return false
	}
	for _, cond := range rule.Conditions {
		if !env.evaluate(cond, pctx) {
			return false
		}
	}
	return true
}

// enabledRulesByPriority filters to enabled rules and orders them highest
// priority first. The sort is stable so rules with equal priority keep
// their profile order, which decides ties.
func enabledRulesByPriority(rules []types.PermissionRule) []types.PermissionRule {
	out := make([]types.PermissionRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
