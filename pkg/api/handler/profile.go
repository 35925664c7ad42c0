package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/dto"
	"github.com/permgate-org/permgate/pkg/profile"
	"github.com/permgate-org/permgate/pkg/types"
)

type ProfileHandler struct {
	store *profile.Store
}

func NewProfileHandler(store *profile.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

func profileStatus(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, profile.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *ProfileHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.store.List(), "active_profile_id": h.store.ActiveID()})
}

func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) Create(c *gin.Context) {
	var req dto.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	defaultDecision := req.DefaultDecision
	if defaultDecision == "" {
		defaultDecision = types.DecisionPrompt
	}
	level := req.SecurityLevel
	if level == "" {
		level = types.LevelCustom
	}

	id, err := h.store.Create(c.Request.Context(), types.PermissionProfile{
		Name:            req.Name,
		Description:     req.Description,
		Rules:           req.Rules,
		DefaultDecision: defaultDecision,
		SecurityLevel:   level,
	})
	if err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dto.IDResponse{ID: id})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var upd profile.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.store.Update(c.Request.Context(), c.Param("id"), upd); err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

func (h *ProfileHandler) Activate(c *gin.Context) {
	if err := h.store.SetActive(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// AddRule validates the rule and appends it to the profile.
func (h *ProfileHandler) AddRule(c *gin.Context) {
	var rule types.PermissionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if result := types.ValidateRule(rule); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"validation": result})
		return
	}

	id, err := h.store.AddRule(c.Request.Context(), c.Param("id"), rule)
	if err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dto.IDResponse{ID: id})
}

func (h *ProfileHandler) UpdateRule(c *gin.Context) {
	var upd profile.RuleUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.store.UpdateRule(c.Request.Context(), c.Param("id"), c.Param("rule_id"), upd); err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProfileHandler) DeleteRule(c *gin.Context) {
	if err := h.store.DeleteRule(c.Request.Context(), c.Param("id"), c.Param("rule_id")); err != nil {
		c.JSON(profileStatus(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// ValidateRule checks a rule without storing it.
func (h *ProfileHandler) ValidateRule(c *gin.Context) {
	var rule types.PermissionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, types.ValidateRule(rule))
}
