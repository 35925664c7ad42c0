package types

import "time"

// Operation is the kind of file operation a tool wants to perform.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpExecute Operation = "execute"
	OpDelete  Operation = "delete"
	OpCreate  Operation = "create"
	OpAnalyze Operation = "analyze"
	OpEdit    Operation = "edit"
	OpSearch  Operation = "search"
)

// Operations lists every recognized operation.
var Operations = []Operation{OpRead, OpWrite, OpExecute, OpDelete, OpCreate, OpAnalyze, OpEdit, OpSearch}

// Scope is the resource granularity a rule or context applies to.
// Broader scopes cover narrower ones: system > workspace > directory > file.
type Scope string

const (
	ScopeFile      Scope = "file"
	ScopeDirectory Scope = "directory"
	ScopeWorkspace Scope = "workspace"
	ScopeSystem    Scope = "system"
)

var scopeRank = map[Scope]int{
	ScopeFile:      0,
	ScopeDirectory: 1,
	ScopeWorkspace: 2,
	ScopeSystem:    3,
}

// Covers reports whether a rule at scope s applies to a context at scope other.
// A rule covers its own scope and every narrower one.
func (s Scope) Covers(other Scope) bool {
	sr, ok := scopeRank[s]
	or, ok2 := scopeRank[other]
	if !ok || !ok2 {
		return false
	}
	return sr >= or
}

// Valid reports whether the scope is one of the recognized values.
func (s Scope) Valid() bool {
	_, ok := scopeRank[s]
	return ok
}

// Decision is the outcome of a permission evaluation.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionDeny   Decision = "deny"
	DecisionPrompt Decision = "prompt"
)

// RiskLevel is the informational severity attached to a decision.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// SecurityLevel classifies a profile's overall posture.
type SecurityLevel string

const (
	LevelConservative SecurityLevel = "conservative"
	LevelBalanced     SecurityLevel = "balanced"
	LevelPermissive   SecurityLevel = "permissive"
	LevelCustom       SecurityLevel = "custom"
)

// ConditionType names the predicate a RuleCondition tests.
type ConditionType string

const (
	CondFileExtension  ConditionType = "file_extension"
	CondFilePattern    ConditionType = "file_pattern"
	CondFilePath       ConditionType = "file_path"
	CondFileSize       ConditionType = "file_size"
	CondWorkspaceRoot  ConditionType = "workspace_root"
	CondTimeOfDay      ConditionType = "time_of_day"
	CondRecentActivity ConditionType = "recent_activity"
)

// ConditionTypes lists every recognized condition type.
var ConditionTypes = []ConditionType{
	CondFileExtension, CondFilePattern, CondFilePath, CondFileSize,
	CondWorkspaceRoot, CondTimeOfDay, CondRecentActivity,
}

// ConditionOperator is the comparison applied by a condition.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorStartsWith  ConditionOperator = "starts_with"
	OperatorEndsWith    ConditionOperator = "ends_with"
	OperatorMatches     ConditionOperator = "matches"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorBetween     ConditionOperator = "between"
)

// ConditionOperators lists every recognized operator.
var ConditionOperators = []ConditionOperator{
	OperatorEquals, OperatorContains, OperatorStartsWith, OperatorEndsWith,
	OperatorMatches, OperatorLessThan, OperatorGreaterThan, OperatorBetween,
}

// RuleCondition is an atomic predicate tested against a PermissionContext.
// Value is a scalar (string or number) or a list of scalars; its
// interpretation depends on Type and Operator. Negate flips the raw result.
type RuleCondition struct {
	Type     ConditionType     `json:"type" yaml:"type"`
	Operator ConditionOperator `json:"operator" yaml:"operator"`
	Value    any               `json:"value" yaml:"value"`
	Negate   bool              `json:"negate,omitempty" yaml:"negate,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// PermissionRule maps an operation+scope to a decision when all of its
// conditions hold. Rules live inside a profile and have no independent
// lifecycle.
type PermissionRule struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Description   string          `json:"description" yaml:"description"`
	Operation     Operation       `json:"operation" yaml:"operation"`
	Scope         Scope           `json:"scope" yaml:"scope"`
	Decision      Decision        `json:"decision" yaml:"decision"`
	RiskLevel     RiskLevel       `json:"risk_level" yaml:"risk_level"`
	Conditions    []RuleCondition `json:"conditions" yaml:"conditions"`
	Priority      int             `json:"priority" yaml:"priority"`
	Enabled       bool            `json:"enabled" yaml:"enabled"`
	AuditRequired bool            `json:"audit_required,omitempty" yaml:"audit_required,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	ModifiedAt    time.Time       `json:"modified_at" yaml:"modified_at"`
}

// Clone creates a deep copy of the rule.
func (r PermissionRule) Clone() PermissionRule {
	clone := r
	if r.Conditions != nil {
		clone.Conditions = make([]RuleCondition, len(r.Conditions))
		for i, c := range r.Conditions {
			cc := c
			if c.Metadata != nil {
				cc.Metadata = make(map[string]string, len(c.Metadata))
				for k, v := range c.Metadata {
					cc.Metadata[k] = v
				}
			}
			clone.Conditions[i] = cc
		}
	}
	return clone
}

// PermissionProfile is a named, versioned bundle of rules plus a default
// decision. Built-in profiles have immutable rule sets.
type PermissionProfile struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Description     string           `json:"description" yaml:"description"`
	IsBuiltIn       bool             `json:"is_built_in" yaml:"is_built_in"`
	IsActive        bool             `json:"is_active" yaml:"is_active"`
	IsDefault       bool             `json:"is_default,omitempty" yaml:"is_default,omitempty"`
	Rules           []PermissionRule `json:"rules" yaml:"rules"`
	DefaultDecision Decision         `json:"default_decision" yaml:"default_decision"`
	SecurityLevel   SecurityLevel    `json:"security_level" yaml:"security_level"`
	CreatedAt       time.Time        `json:"created_at" yaml:"created_at"`
	ModifiedAt      time.Time        `json:"modified_at" yaml:"modified_at"`
	Version         int64            `json:"version" yaml:"version"`
}

// Clone creates a deep copy of the profile.
func (p *PermissionProfile) Clone() *PermissionProfile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Rules = make([]PermissionRule, len(p.Rules))
	for i, r := range p.Rules {
		clone.Rules[i] = r.Clone()
	}
	return &clone
}

// PermissionContext is the immutable input to an evaluation.
type PermissionContext struct {
	URI            string            `json:"uri"`
	Operation      Operation         `json:"operation"`
	Scope          Scope             `json:"scope"`
	RequestingTool string            `json:"requesting_tool"`
	Timestamp      time.Time         `json:"timestamp"`
	UserID         string            `json:"user_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	BatchSize      int               `json:"batch_size,omitempty"`
}

// PermissionResult is the outcome of evaluating a context.
type PermissionResult struct {
	Decision             Decision        `json:"decision"`
	MatchedRule          *PermissionRule `json:"matched_rule,omitempty"`
	Reason               string          `json:"reason"`
	RiskLevel            RiskLevel       `json:"risk_level"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	EvaluationTime       time.Duration   `json:"evaluation_time"`
	Cacheable            bool            `json:"cacheable"`
	CacheTimeout         time.Duration   `json:"cache_timeout,omitempty"`
}

// AuditEntry records one evaluated or manually decided request.
type AuditEntry struct {
	ID        string            `json:"id"`
	Context   PermissionContext `json:"context"`
	Result    PermissionResult  `json:"result"`
	Executed  bool              `json:"executed"`
	Notes     string            `json:"notes,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
}

// RuleCount pairs a rule id with how often it matched.
type RuleCount struct {
	RuleID string `json:"rule_id"`
	Count  int    `json:"count"`
}

// Statistics aggregates audit entries over a time window.
type Statistics struct {
	Total             int               `json:"total"`
	ByDecision        map[Decision]int  `json:"by_decision"`
	ByOperation       map[Operation]int `json:"by_operation"`
	ByRiskLevel       map[RiskLevel]int `json:"by_risk_level"`
	AvgEvaluationTime time.Duration     `json:"avg_evaluation_time"`
	TopRules          []RuleCount       `json:"top_rules"`
	PeriodStart       time.Time         `json:"period_start"`
	PeriodEnd         time.Time         `json:"period_end"`
}
