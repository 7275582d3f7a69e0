package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LeviWoodfall/Regia/internal/services"
)

// LogHandler serves the ingestion audit trail
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// ListLogs returns recent ingestion log entries
// GET /api/logs?limit=100&action=fetch_complete&status=error
func (h *LogHandler) ListLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	query := services.LogQuery{
		Action: c.Query("action"),
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	}
	if accountParam := c.Query("account_id"); accountParam != "" {
		if accountID, err := strconv.ParseUint(accountParam, 10, 32); err == nil {
			id := uint(accountID)
			query.AccountID = &id
		}
	}

	result, err := h.logService.QueryLogs(query)
	if err != nil {
		internalError(c, "Failed to retrieve logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total": result.Total,
			"logs":  result.Logs,
		},
	})
}
