package types

import "fmt"

// ValidationResult reports whether a rule is well formed. Validation
// failures are data, not errors: callers inspect Errors and decide.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateRule checks a rule for structural problems before it is added to
// a profile. It is the sole gate for priority range and condition shape;
// matching does not re-check or clamp.
func ValidateRule(rule PermissionRule) ValidationResult {
	var errs []string

	if rule.Name == "" {
		errs = append(errs, "rule name must not be empty")
	}
	if rule.Description == "" {
		errs = append(errs, "rule description must not be empty")
	}
	if rule.Priority < 0 || rule.Priority > 1000 {
		errs = append(errs, fmt.Sprintf("priority %d out of range [0,1000]", rule.Priority))
	}
	if len(rule.Conditions) == 0 {
		errs = append(errs, "rule must have at least one condition")
	}
	for i, cond := range rule.Conditions {
		if !validConditionType(cond.Type) {
			errs = append(errs, fmt.Sprintf("condition %d: unknown type %q", i, cond.Type))
		}
		if !validConditionOperator(cond.Operator) {
			errs = append(errs, fmt.Sprintf("condition %d: unknown operator %q", i, cond.Operator))
		}
		if cond.Value == nil {
			errs = append(errs, fmt.Sprintf("condition %d: value must not be null", i))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validConditionType(t ConditionType) bool {
	for _, known := range ConditionTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validConditionOperator(op ConditionOperator) bool {
	for _, known := range ConditionOperators {
		if op == known {
			return true
		}
	}
	return false
}
