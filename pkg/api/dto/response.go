package dto

import "github.com/permgate-org/permgate/pkg/types"

// EvaluateResponse carries the decision plus, for Prompt decisions, the id
// the host answers on.
type EvaluateResponse struct {
	Result   types.PermissionResult `json:"result"`
	PromptID string                 `json:"prompt_id,omitempty"`
}

// CheckResponse is the would-auto-approve answer.
type CheckResponse struct {
	WouldAutoApprove bool `json:"would_auto_approve"`
}

// IDResponse returns the id of a newly created resource.
type IDResponse struct {
	ID string `json:"id"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeleteResponse is the response for delete operations.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
