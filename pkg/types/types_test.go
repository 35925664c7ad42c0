package types

import (
	"regexp"
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		fn     func() string
	}{
		{"profile", "prf_", GenerateProfileID},
		{"rule", "rul_", GenerateRuleID},
		{"audit", "aud_", GenerateAuditID},
		{"decision", "dec_", GenerateDecisionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.fn()
			if ok, _ := regexp.MatchString("^"+regexp.QuoteMeta(tt.prefix)+"[0-9A-HJKMNP-TV-Z]{26}$", id); !ok {
				t.Fatalf("generated id %s does not have expected prefix %s", id, tt.prefix)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/src/main.go", "go"},
		{"/src/README.MD", "md"},
		{"file_without_extension", ""},
		{"/dir.with.dots/plain", ""},
		{"archive.tar.gz", "gz"},
		{"trailing.", ""},
		{"C:\\work\\notes.TXT", "txt"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FileExtension(tt.uri); got != tt.want {
			t.Fatalf("FileExtension(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestScopeCovers(t *testing.T) {
	tests := []struct {
		rule Scope
		ctx  Scope
		want bool
	}{
		{ScopeSystem, ScopeFile, true},
		{ScopeSystem, ScopeSystem, true},
		{ScopeWorkspace, ScopeDirectory, true},
		{ScopeWorkspace, ScopeFile, true},
		{ScopeDirectory, ScopeFile, true},
		{ScopeFile, ScopeFile, true},
		{ScopeFile, ScopeDirectory, false},
		{ScopeDirectory, ScopeWorkspace, false},
		{ScopeWorkspace, ScopeSystem, false},
		{Scope("bogus"), ScopeFile, false},
		{ScopeSystem, Scope("bogus"), false},
	}

	for _, tt := range tests {
		if got := tt.rule.Covers(tt.ctx); got != tt.want {
			t.Fatalf("%s.Covers(%s) = %v, want %v", tt.rule, tt.ctx, got, tt.want)
		}
	}
}

func TestScopeValid(t *testing.T) {
	for _, s := range []Scope{ScopeFile, ScopeDirectory, ScopeWorkspace, ScopeSystem} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if Scope("galaxy").Valid() {
		t.Fatalf("expected unknown scope to be invalid")
	}
}

func TestValidateRule(t *testing.T) {
	good := PermissionRule{
		Name:        "Allow reading go files",
		Description: "Source files are safe to read",
		Operation:   OpRead,
		Scope:       ScopeFile,
		Decision:    DecisionAllow,
		Priority:    100,
		Conditions: []RuleCondition{
			{Type: CondFileExtension, Operator: OperatorEquals, Value: "go"},
		},
	}
	if result := ValidateRule(good); !result.Valid {
		t.Fatalf("expected rule to validate, got errors %v", result.Errors)
	}

	bad := PermissionRule{
		Priority: 5000,
		Conditions: []RuleCondition{
			{Type: ConditionType("phase_of_moon"), Operator: ConditionOperator("resembles"), Value: nil},
		},
	}
	result := ValidateRule(bad)
	if result.Valid {
		t.Fatalf("expected rule to fail validation")
	}
	// empty name, empty description, priority range, bad type, bad operator, nil value
	if len(result.Errors) != 6 {
		t.Fatalf("expected 6 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	noConditions := good
	noConditions.Conditions = nil
	if result := ValidateRule(noConditions); result.Valid {
		t.Fatalf("expected rule without conditions to fail validation")
	}
}

func TestRuleClone(t *testing.T) {
	rule := PermissionRule{
		ID:   "rul_1",
		Name: "original",
		Conditions: []RuleCondition{
			{Type: CondFileExtension, Operator: OperatorEquals, Value: "go", Metadata: map[string]string{"k": "v"}},
		},
	}

	clone := rule.Clone()
	clone.Conditions[0].Value = "md"
	clone.Conditions[0].Metadata["k"] = "changed"

	if rule.Conditions[0].Value != "go" {
		t.Fatalf("clone mutated original condition value")
	}
	if rule.Conditions[0].Metadata["k"] != "v" {
		t.Fatalf("clone mutated original condition metadata")
	}
}

func TestProfileClone(t *testing.T) {
	profile := &PermissionProfile{
		ID:   "prf_1",
		Name: "custom",
		Rules: []PermissionRule{
			{ID: "rul_1", Conditions: []RuleCondition{{Type: CondFileExtension, Operator: OperatorEquals, Value: "go"}}},
		},
	}

	clone := profile.Clone()
	if clone == profile {
		t.Fatalf("expected clone to be a different instance")
	}
	clone.Rules[0].ID = "rul_changed"
	if profile.Rules[0].ID != "rul_1" {
		t.Fatalf("clone mutated original rules")
	}

	var nilProfile *PermissionProfile
	if nilProfile.Clone() != nil {
		t.Fatalf("expected nil clone for nil profile")
	}
}
