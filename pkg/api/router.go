package api

import (
	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/handler"
	"github.com/permgate-org/permgate/pkg/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health (no auth required)
	s.engine.GET("/health", handler.Health)

	// Prometheus scrape endpoint
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(s.config.APIKey))

	// Evaluation handlers
	evalHandler := handler.NewEvaluateHandler(s.policy, s.prompts)
	v1.POST("/evaluate", evalHandler.Evaluate)
	v1.POST("/check", evalHandler.Check)
	v1.GET("/prompt", evalHandler.ListPrompts)
	v1.POST("/prompt/:id", evalHandler.AnswerPrompt)

	// Profile handlers
	profileHandler := handler.NewProfileHandler(s.policy.Profiles())
	v1.GET("/profile", profileHandler.List)
	v1.POST("/profile", profileHandler.Create)
	v1.GET("/profile/:id", profileHandler.Get)
	v1.PATCH("/profile/:id", profileHandler.Update)
	v1.DELETE("/profile/:id", profileHandler.Delete)
	v1.POST("/profile/:id/activate", profileHandler.Activate)
	v1.POST("/profile/:id/rule", profileHandler.AddRule)
	v1.PATCH("/profile/:id/rule/:rule_id", profileHandler.UpdateRule)
	v1.DELETE("/profile/:id/rule/:rule_id", profileHandler.DeleteRule)
	v1.POST("/rule/validate", profileHandler.ValidateRule)

	// Audit handlers
	auditHandler := handler.NewAuditHandler(s.policy.Audit())
	v1.GET("/audit", auditHandler.Query)
	v1.GET("/audit/export", auditHandler.Export)
	v1.DELETE("/audit", auditHandler.Clear)
	v1.GET("/audit/stats", auditHandler.Statistics)
	v1.GET("/audit/suggestions", auditHandler.Suggestions)

	// K8s liveness check
	s.engine.GET("/healthz", handler.Health)
}
