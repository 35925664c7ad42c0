package profile

import (
	"context"
	"fmt"

	"github.com/permgate-org/permgate/pkg/types"
)

// Extension sets used by the built-in profiles.
var (
	textExtensions = []string{"txt", "md", "json", "yaml", "yml", "xml", "csv", "log"}

	codeExtensions = []string{
		"txt", "md", "json", "yaml", "yml", "xml", "csv", "log",
		"go", "js", "ts", "py", "rb", "java", "c", "h", "cpp", "hpp",
		"css", "html", "toml", "ini", "cfg",
	}

	writableDocExtensions = []string{"txt", "md", "json", "yaml", "yml", "csv"}

	executableExtensions = []string{"exe", "dll", "so", "dylib", "sh", "bat", "cmd", "ps1", "msi"}

	systemExtensions = []string{"exe", "dll", "sys"}
)

func extensionCondition(exts []string) types.RuleCondition {
	value := make([]any, len(exts))
	for i, e := range exts {
		value[i] = e
	}
	return types.RuleCondition{
		Type:     types.CondFileExtension,
		Operator: types.OperatorEquals,
		Value:    value,
	}
}

// EnsureBuiltins creates the conservative, balanced and permissive profiles
// if no built-in profile for that security level exists yet, then activates
// conservative when nothing else is active. Safe to call on every startup.
func EnsureBuiltins(ctx context.Context, s *Store) error {
	existing := make(map[types.SecurityLevel]string)
	for _, p := range s.List() {
		if p.IsBuiltIn {
			existing[p.SecurityLevel] = p.ID
		}
	}

	var conservativeID string
	for _, def := range builtinDefinitions() {
		if id, ok := existing[def.SecurityLevel]; ok {
			if def.SecurityLevel == types.LevelConservative {
				conservativeID = id
			}
			continue
		}
		id, err := s.Create(ctx, def)
		if err != nil {
			return fmt.Errorf("create built-in profile %s: %w", def.Name, err)
		}
		if def.SecurityLevel == types.LevelConservative {
			conservativeID = id
		}
	}

	if _, active := s.Active(); !active && conservativeID != "" {
		if err := s.SetActive(ctx, conservativeID); err != nil {
			return fmt.Errorf("activate conservative profile: %w", err)
		}
	}
	return nil
}

func builtinDefinitions() []types.PermissionProfile {
	allowTextRead := types.PermissionRule{
		Name:        "Allow reading common text files",
		Description: "Plain text and data formats are safe to read without confirmation",
		Operation:   types.OpRead,
		Scope:       types.ScopeFile,
		Decision:    types.DecisionAllow,
		RiskLevel:   types.RiskLow,
		Conditions:  []types.RuleCondition{extensionCondition(textExtensions)},
		Priority:    100,
		Enabled:     true,
	}
	allowCodeRead := types.PermissionRule{
		Name:        "Allow reading source and text files",
		Description: "Source code and text formats are safe to read without confirmation",
		Operation:   types.OpRead,
		Scope:       types.ScopeFile,
		Decision:    types.DecisionAllow,
		RiskLevel:   types.RiskLow,
		Conditions:  []types.RuleCondition{extensionCondition(codeExtensions)},
		Priority:    100,
		Enabled:     true,
	}
	allowDocWrite := types.PermissionRule{
		Name:        "Allow writing documentation and data files",
		Description: "Writes to documentation and plain data formats proceed without confirmation",
		Operation:   types.OpWrite,
		Scope:       types.ScopeFile,
		Decision:    types.DecisionAllow,
		RiskLevel:   types.RiskLow,
		Conditions:  []types.RuleCondition{extensionCondition(writableDocExtensions)},
		Priority:    90,
		Enabled:     true,
	}
	denyExecutableWrite := types.PermissionRule{
		Name:          "Deny writing executable files",
		Description:   "Writes to executables and scripts are blocked outright",
		Operation:     types.OpWrite,
		Scope:         types.ScopeFile,
		Decision:      types.DecisionDeny,
		RiskLevel:     types.RiskCritical,
		Conditions:    []types.RuleCondition{extensionCondition(executableExtensions)},
		Priority:      200,
		Enabled:       true,
		AuditRequired: true,
	}
	denySystemWrite := types.PermissionRule{
		Name:          "Deny writing system binaries",
		Description:   "Writes to system binary formats are blocked outright",
		Operation:     types.OpWrite,
		Scope:         types.ScopeFile,
		Decision:      types.DecisionDeny,
		RiskLevel:     types.RiskCritical,
		Conditions:    []types.RuleCondition{extensionCondition(systemExtensions)},
		Priority:      200,
		Enabled:       true,
		AuditRequired: true,
	}

	return []types.PermissionProfile{
		{
			Name:            "Conservative",
			Description:     "Prompts for everything except reading common text files",
			IsBuiltIn:       true,
			Rules:           []types.PermissionRule{allowTextRead, denyExecutableWrite},
			DefaultDecision: types.DecisionPrompt,
			SecurityLevel:   types.LevelConservative,
		},
		{
			Name:            "Balanced",
			Description:     "Auto-approves routine reads and low-risk writes, prompts otherwise",
			IsBuiltIn:       true,
			Rules:           []types.PermissionRule{allowCodeRead, allowDocWrite, denyExecutableWrite},
			DefaultDecision: types.DecisionPrompt,
			SecurityLevel:   types.LevelBalanced,
		},
		{
			Name:            "Permissive",
			Description:     "Allows everything except writing system binaries",
			IsBuiltIn:       true,
			Rules:           []types.PermissionRule{denySystemWrite},
			DefaultDecision: types.DecisionAllow,
			SecurityLevel:   types.LevelPermissive,
		},
	}
}
