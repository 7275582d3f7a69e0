package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/services"
)

// EmailHandler serves read access to ingested emails
type EmailHandler struct {
	emailService *services.EmailService
	logService   *services.LogService
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(emailService *services.EmailService, logService *services.LogService) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		logService:   logService,
	}
}

// ListEmails returns emails filtered by status or account
// GET /api/emails?status=pending&account_id=1&limit=50
func (h *EmailHandler) ListEmails(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	if accountParam := c.Query("account_id"); accountParam != "" {
		accountID, err := strconv.ParseUint(accountParam, 10, 32)
		if err != nil {
			badRequest(c, "Invalid account_id")
			return
		}
		emails, err := h.emailService.ListEmailsByAccount(uint(accountID), limit)
		if err != nil {
			internalError(c, "Failed to retrieve emails")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": emails})
		return
	}

	status := models.EmailStatus(c.DefaultQuery("status", string(models.EmailStatusPending)))
	emails, err := h.emailService.ListEmailsByStatus(status, limit)
	if err != nil {
		internalError(c, "Failed to retrieve emails")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": emails})
}

// GetEmail returns one email with its documents
// GET /api/emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	email, err := h.emailService.GetEmail(id)
	if err == services.ErrEmailNotFound {
		notFound(c, "Email not found")
		return
	}
	if err != nil {
		internalError(c, "Failed to retrieve email")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": email})
}

// GetEmailLogs returns the ingestion audit trail for one email
// GET /api/emails/:id/logs
func (h *EmailHandler) GetEmailLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	logs, err := h.logService.GetLogsByEmail(id)
	if err != nil {
		internalError(c, "Failed to retrieve logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": logs})
}
