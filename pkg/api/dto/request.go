package dto

import "github.com/permgate-org/permgate/pkg/types"

// EvaluateRequest asks for a permission decision on one operation.
type EvaluateRequest struct {
	URI       string            `json:"uri" binding:"required"`
	Operation types.Operation   `json:"operation" binding:"required"`
	Scope     types.Scope       `json:"scope"`
	Tool      string            `json:"tool"`
	UserID    string            `json:"user_id"`
	Metadata  map[string]string `json:"metadata"`

	ProfileID string `json:"profile_id"`
	SkipCache bool   `json:"skip_cache"`
	SkipAudit bool   `json:"skip_audit"`
}

// Context converts the request into the engine's evaluation input.
func (r EvaluateRequest) Context() types.PermissionContext {
	scope := r.Scope
	if scope == "" {
		scope = types.ScopeFile
	}
	return types.PermissionContext{
		URI:            r.URI,
		Operation:      r.Operation,
		Scope:          scope,
		RequestingTool: r.Tool,
		UserID:         r.UserID,
		Metadata:       r.Metadata,
	}
}

// PromptAnswer resolves a pending prompt. Always additionally materializes
// a rule so the same request is decided automatically next time.
type PromptAnswer struct {
	Approved bool `json:"approved"`
	Always   bool `json:"always"`
}

// CreateProfileRequest creates a custom profile.
type CreateProfileRequest struct {
	Name            string                 `json:"name" binding:"required"`
	Description     string                 `json:"description"`
	DefaultDecision types.Decision         `json:"default_decision"`
	SecurityLevel   types.SecurityLevel    `json:"security_level"`
	Rules           []types.PermissionRule `json:"rules"`
}
