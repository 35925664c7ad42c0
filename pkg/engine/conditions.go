package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/permgate-org/permgate/pkg/types"
)

// conditionEnv bundles the collaborators the evaluators need. fs and ws
// may be nil; the conditions that need them then degrade to satisfied.
type conditionEnv struct {
	clock    types.Clock
	fs       FileStat
	ws       Workspace
	activity ActivityLog
	log      *slog.Logger
}

// evaluate resolves one condition against a context. The raw result is
// XORed with Negate. A failing evaluator contributes false to the rule's
// AND regardless of Negate and never aborts the evaluation.
func (env *conditionEnv) evaluate(cond types.RuleCondition, pctx types.PermissionContext) bool {
	raw, err := env.evaluateRaw(cond, pctx)
	if err != nil {
		env.log.Warn("condition evaluation failed",
			"type", cond.Type, "operator", cond.Operator, "error", err)
		return false
	}
	if cond.Negate {
		return !raw
	}
	return raw
}

func (env *conditionEnv) evaluateRaw(cond types.RuleCondition, pctx types.PermissionContext) (bool, error) {
	switch cond.Type {
	case types.CondFileExtension:
		return evalFileExtension(cond, pctx.URI)
	case types.CondFilePattern:
		return evalFilePattern(cond, pctx.URI)
	case types.CondFilePath:
		return evalFilePath(cond, pctx.URI)
	case types.CondFileSize:
		return env.evalFileSize(cond, pctx.URI)
	case types.CondWorkspaceRoot:
		return env.evalWorkspaceRoot(pctx.URI)
	case types.CondTimeOfDay:
		return env.evalTimeOfDay(cond)
	case types.CondRecentActivity:
		return env.evalRecentActivity(cond, pctx)
	default:
		return false, fmt.Errorf("unknown condition type %q", cond.Type)
	}
}

func evalFileExtension(cond types.RuleCondition, uri string) (bool, error) {
	ext := types.FileExtension(uri)
	values, err := valueStrings(cond.Value)
	if err != nil {
		return false, err
	}

	switch cond.Operator {
	case types.OperatorEquals:
		for _, v := range values {
			if ext == strings.ToLower(v) {
				return true, nil
			}
		}
		return false, nil
	case types.OperatorContains:
		for _, v := range values {
			if strings.Contains(ext, strings.ToLower(v)) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("operator %q not supported for file_extension", cond.Operator)
	}
}

// evalFilePattern applies string operators to the raw path; matches is glob
// matching in ** syntax.
func evalFilePattern(cond types.RuleCondition, uri string) (bool, error) {
	if cond.Operator != types.OperatorMatches {
		return evalPathStringOp(cond, uri)
	}
	patterns, err := valueStrings(cond.Value)
	if err != nil {
		return false, err
	}
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, uriToPath(uri))
		if err != nil {
			return false, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// evalFilePath applies string operators to the raw path; matches is a
// regular expression test.
func evalFilePath(cond types.RuleCondition, uri string) (bool, error) {
	if cond.Operator != types.OperatorMatches {
		return evalPathStringOp(cond, uri)
	}
	exprs, err := valueStrings(cond.Value)
	if err != nil {
		return false, err
	}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return false, fmt.Errorf("bad regexp %q: %w", expr, err)
		}
		if re.MatchString(uri) {
			return true, nil
		}
	}
	return false, nil
}

func evalPathStringOp(cond types.RuleCondition, uri string) (bool, error) {
	values, err := valueStrings(cond.Value)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		var ok bool
		switch cond.Operator {
		case types.OperatorEquals:
			ok = uri == v
		case types.OperatorContains:
			ok = strings.Contains(uri, v)
		case types.OperatorStartsWith:
			ok = strings.HasPrefix(uri, v)
		case types.OperatorEndsWith:
			ok = strings.HasSuffix(uri, v)
		default:
			return false, fmt.Errorf("operator %q not supported for path conditions", cond.Operator)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// evalFileSize compares the resource size in bytes. Missing collaborator or
// a failed stat degrade to satisfied rather than failing the whole rule.
func (env *conditionEnv) evalFileSize(cond types.RuleCondition, uri string) (bool, error) {
	if env.fs == nil {
		return true, nil
	}
	size, err := env.fs.Size(uri)
	if err != nil {
		env.log.Debug("file size unavailable, treating condition as satisfied", "uri", uri, "error", err)
		return true, nil
	}
	return compareNumber(cond, float64(size))
}

func (env *conditionEnv) evalWorkspaceRoot(uri string) (bool, error) {
	if env.ws == nil {
		return true, nil
	}
	inside, err := env.ws.Contains(uri)
	if err != nil {
		env.log.Debug("workspace lookup unavailable, treating condition as satisfied", "uri", uri, "error", err)
		return true, nil
	}
	return inside, nil
}

func (env *conditionEnv) evalTimeOfDay(cond types.RuleCondition) (bool, error) {
	hour := float64(env.clock.Now().Hour())
	return compareNumber(cond, hour)
}

func (env *conditionEnv) evalRecentActivity(cond types.RuleCondition, pctx types.PermissionContext) (bool, error) {
	if env.activity == nil {
		return false, nil
	}
	nums, err := valueNumbers(cond.Value)
	if err != nil {
		return false, err
	}
	if len(nums) == 0 {
		return false, fmt.Errorf("recent_activity requires a lookback in minutes")
	}
	since := env.clock.Now().Add(-time.Duration(nums[0] * float64(time.Minute)))
	return env.activity.HasRecentActivity(pctx.URI, pctx.Operation, since), nil
}

// compareNumber implements the numeric operators. between takes a two
// element value; a scalar collapses both bounds to the same number.
func compareNumber(cond types.RuleCondition, actual float64) (bool, error) {
	nums, err := valueNumbers(cond.Value)
	if err != nil {
		return false, err
	}
	if len(nums) == 0 {
		return false, fmt.Errorf("numeric condition requires a value")
	}

	switch cond.Operator {
	case types.OperatorEquals:
		for _, n := range nums {
			if actual == n {
				return true, nil
			}
		}
		return false, nil
	case types.OperatorLessThan:
		return actual < nums[0], nil
	case types.OperatorGreaterThan:
		return actual > nums[0], nil
	case types.OperatorBetween:
		lo, hi := nums[0], nums[0]
		if len(nums) > 1 {
			hi = nums[1]
		}
		return actual >= lo && actual <= hi, nil
	default:
		return false, fmt.Errorf("operator %q not supported for numeric conditions", cond.Operator)
	}
}

// valueStrings coerces a condition value to a string list.
func valueStrings(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, err := valueStrings(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}, nil
	case int:
		return []string{strconv.Itoa(val)}, nil
	case nil:
		return nil, fmt.Errorf("condition value is null")
	default:
		return nil, fmt.Errorf("cannot use %T as string value", v)
	}
}

// valueNumbers coerces a condition value to a number list. Strings parse as
// floats so JSON-sourced values round-trip either way.
func valueNumbers(v any) ([]float64, error) {
	switch val := v.(type) {
	case float64:
		return []float64{val}, nil
	case int:
		return []float64{float64(val)}, nil
	case int64:
		return []float64{float64(val)}, nil
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as number", val)
		}
		return []float64{n}, nil
	case []float64:
		return val, nil
	case []any:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			n, err := valueNumbers(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n...)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("condition value is null")
	default:
		return nil, fmt.Errorf("cannot use %T as numeric value", v)
	}
}
