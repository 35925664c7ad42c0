package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/dto"
	"github.com/permgate-org/permgate/pkg/engine"
	"github.com/permgate-org/permgate/pkg/prompt"
	"github.com/permgate-org/permgate/pkg/types"
)

type EvaluateHandler struct {
	engine  *engine.Engine
	prompts *prompt.Manager
}

func NewEvaluateHandler(eng *engine.Engine, prompts *prompt.Manager) *EvaluateHandler {
	return &EvaluateHandler{engine: eng, prompts: prompts}
}

// Evaluate decides one operation. Prompt decisions additionally register a
// pending prompt and return its id for the answer endpoint.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	pctx := req.Context()
	result := h.engine.Evaluate(c.Request.Context(), pctx, engine.EvalOptions{
		ProfileID: req.ProfileID,
		SkipCache: req.SkipCache,
		SkipAudit: req.SkipAudit,
	})

	resp := dto.EvaluateResponse{Result: result}
	if result.RequiresConfirmation {
		resp.PromptID = h.prompts.Request(pctx)
	}
	c.JSON(http.StatusOK, resp)
}

// Check reports whether the operation would be auto-approved, without
// auditing or prompting.
func (h *EvaluateHandler) Check(c *gin.Context) {
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	approve := h.engine.WouldAutoApprove(c.Request.Context(), req.Context())
	c.JSON(http.StatusOK, dto.CheckResponse{WouldAutoApprove: approve})
}

// ListPrompts returns prompts still waiting on a user answer.
func (h *EvaluateHandler) ListPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.prompts.List()})
}

// AnswerPrompt resolves a pending prompt with the user's decision and
// records it as a manual approval or denial.
func (h *EvaluateHandler) AnswerPrompt(c *gin.Context) {
	id := c.Param("id")

	var answer dto.PromptAnswer
	if err := c.ShouldBindJSON(&answer); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	pctx, ok := h.prompts.Context(id)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: prompt.ErrRequestNotFound.Error()})
		return
	}

	// Wake any in-process waiter, then drop the entry for hosts that
	// resolve prompts purely over HTTP.
	_ = h.prompts.Respond(id, prompt.Response{Approved: answer.Approved, Always: answer.Always})
	h.prompts.Remove(id)

	var result types.PermissionResult
	if answer.Approved {
		result = h.engine.ManuallyApprove(c.Request.Context(), pctx, answer.Always)
	} else {
		result = h.engine.ManuallyDeny(c.Request.Context(), pctx, answer.Always)
	}
	c.JSON(http.StatusOK, dto.EvaluateResponse{Result: result})
}
