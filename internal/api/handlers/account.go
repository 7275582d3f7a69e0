package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/ingest"
	"github.com/LeviWoodfall/Regia/internal/services"
)

// AccountHandler handles mail account related requests
type AccountHandler struct {
	accountService *services.AccountService
	orchestrator   *ingest.Orchestrator
}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler(accountService *services.AccountService, orchestrator *ingest.Orchestrator) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		orchestrator:   orchestrator,
	}
}

// CreateAccountRequest represents the request to create a mail account
type CreateAccountRequest struct {
	Name               string   `json:"name"`
	Email              string   `json:"email" binding:"required,email"`
	IMAPHost           string   `json:"imap_host" binding:"required"`
	IMAPPort           int      `json:"imap_port"`
	UseSSL             bool     `json:"use_ssl"`
	AuthMethod         string   `json:"auth_method"`
	OAuthClientID      string   `json:"oauth_client_id"`
	OAuthClientSecret  string   `json:"oauth_client_secret"`
	Folders            []string `json:"folders"`
	SearchCriteria     string   `json:"search_criteria"`
	MaxPerFetch        int      `json:"max_per_fetch"`
	MaxAgeDays         int      `json:"max_age_days"`
	RequireAttachments bool     `json:"require_attachments"`
	MaxAttachmentMB    int      `json:"max_attachment_mb"`
	DownloadLinks      bool     `json:"download_links"`
	PostAction         string   `json:"post_action"`
	PostActionFolder   string   `json:"post_action_folder"`
}

// AccountResponse represents the response for a mail account
type AccountResponse struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	IMAPHost       string   `json:"imap_host"`
	IMAPPort       int      `json:"imap_port"`
	UseSSL         bool     `json:"use_ssl"`
	AuthMethod     string   `json:"auth_method"`
	Enabled        bool     `json:"enabled"`
	Folders        []string `json:"folders"`
	SearchCriteria string   `json:"search_criteria"`
	PostAction     string   `json:"post_action"`
	LastSyncAt     int64    `json:"last_sync_at"`
	CreatedAt      int64    `json:"created_at"`
}

// toAccountResponse converts a MailAccount model to AccountResponse
func toAccountResponse(account *models.MailAccount) AccountResponse {
	action := account.ResolvePostAction()
	return AccountResponse{
		ID:             account.ID,
		Name:           account.Name,
		Email:          account.Email,
		IMAPHost:       account.IMAPHost,
		IMAPPort:       account.IMAPPort,
		UseSSL:         account.UseSSL,
		AuthMethod:     account.AuthMethod,
		Enabled:        account.Enabled,
		Folders:        account.FolderList(),
		SearchCriteria: account.SearchCriteria,
		PostAction:     string(action.Kind),
		LastSyncAt:     account.LastSyncAt.Unix(),
		CreatedAt:      account.CreatedAt.Unix(),
	}
}

// ListAccounts returns all configured mail accounts
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts()
	if err != nil {
		internalError(c, "Failed to retrieve accounts")
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		response = append(response, toAccountResponse(&accounts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}

// CreateAccount creates a new mail account
// POST /api/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid account data: "+err.Error())
		return
	}

	account, err := h.accountService.CreateAccount(services.CreateAccountInput{
		Name:               req.Name,
		Email:              req.Email,
		IMAPHost:           req.IMAPHost,
		IMAPPort:           req.IMAPPort,
		UseSSL:             req.UseSSL,
		AuthMethod:         req.AuthMethod,
		OAuthClientID:      req.OAuthClientID,
		OAuthClientSecret:  req.OAuthClientSecret,
		Folders:            req.Folders,
		SearchCriteria:     req.SearchCriteria,
		MaxPerFetch:        req.MaxPerFetch,
		MaxAgeDays:         req.MaxAgeDays,
		RequireAttachments: req.RequireAttachments,
		MaxAttachmentMB:    req.MaxAttachmentMB,
		DownloadLinks:      req.DownloadLinks,
		PostAction:         req.PostAction,
		PostActionFolder:   req.PostActionFolder,
	})
	if err == services.ErrAccountAlreadyExists {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ACCOUNT_EXISTS",
				"message": "An account with this address already exists",
			},
		})
		return
	}
	if err != nil {
		badRequest(c, "Failed to create account: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// GetAccount returns one mail account
// GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(id)
	if err == services.ErrAccountNotFound {
		notFound(c, "Account not found")
		return
	}
	if err != nil {
		internalError(c, "Failed to retrieve account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// EnableAccount enables an account for ingestion runs
// PUT /api/accounts/:id/enable
func (h *AccountHandler) EnableAccount(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableAccount disables an account
// PUT /api/accounts/:id/disable
func (h *AccountHandler) DisableAccount(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *AccountHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.accountService.SetEnabled(id, enabled); err != nil {
		if err == services.ErrAccountNotFound {
			notFound(c, "Account not found")
			return
		}
		internalError(c, "Failed to update account")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RunAccount triggers one ingestion run for an account and returns the
// run summary.
// POST /api/accounts/:id/run
func (h *AccountHandler) RunAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(id)
	if err == services.ErrAccountNotFound {
		notFound(c, "Account not found")
		return
	}
	if err != nil {
		internalError(c, "Failed to retrieve account")
		return
	}

	summary := h.orchestrator.Run(account)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// TestConnectionRequest represents a connectivity probe request
type TestConnectionRequest struct {
	IMAPHost string `json:"imap_host" binding:"required"`
	IMAPPort int    `json:"imap_port" binding:"required"`
	UseSSL   bool   `json:"use_ssl"`
}

// TestConnection probes an IMAP server without saving anything
// POST /api/accounts/test
func (h *AccountHandler) TestConnection(c *gin.Context) {
	var req TestConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid connection data: "+err.Error())
		return
	}

	result := services.TestIMAPConnection(req.IMAPHost, req.IMAPPort, req.UseSSL)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// parseID reads the :id path parameter, answering 400 on garbage.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_REQUEST",
			"message": message,
		},
	})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "NOT_FOUND",
			"message": message,
		},
	})
}

func internalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": message,
		},
	})
}
