package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/dto"
)

// Health returns server health and version.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Version: "1.0.0",
	})
}
