package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/permgate-org/permgate/pkg/api/dto"
	"github.com/permgate-org/permgate/pkg/audit"
)

var auditFilterKeys = []string{
	"operation", "decision", "uri", "tool", "user_id", "session_id", "risk_level", "executed",
}

type AuditHandler struct {
	log *audit.Log
}

func NewAuditHandler(log *audit.Log) *AuditHandler {
	return &AuditHandler{log: log}
}

func (h *AuditHandler) Query(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	filter := map[string]string{}
	for _, key := range auditFilterKeys {
		if v := c.Query(key); v != "" {
			filter[key] = v
		}
	}

	entries := h.log.Entries(limit, filter)
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (h *AuditHandler) Export(c *gin.Context) {
	switch c.DefaultQuery("format", "json") {
	case "json":
		data, err := h.log.ExportJSON()
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	case "csv":
		c.Data(http.StatusOK, "text/csv", []byte(h.log.ExportCSV()))
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "format must be json or csv"})
	}
}

// Clear removes entries. With older_than set (RFC3339) only entries before
// that instant are dropped.
func (h *AuditHandler) Clear(c *gin.Context) {
	var olderThan *time.Time
	if raw := c.Query("older_than"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "older_than must be RFC3339"})
			return
		}
		olderThan = &t
	}
	h.log.Clear(c.Request.Context(), olderThan)
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

func (h *AuditHandler) Statistics(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "from must be RFC3339"})
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "to must be RFC3339"})
			return
		}
		to = &t
	}
	c.JSON(http.StatusOK, h.log.Statistics(from, to))
}

func (h *AuditHandler) Suggestions(c *gin.Context) {
	lookback := 7 * 24 * time.Hour
	if raw := c.Query("lookback_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "lookback_hours must be a positive integer"})
			return
		}
		lookback = time.Duration(n) * time.Hour
	}
	rules := h.log.SuggestRules(lookback)
	c.JSON(http.StatusOK, gin.H{"suggestions": rules, "count": len(rules)})
}
