package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LeviWoodfall/Regia/internal/services"
)

// DocumentHandler serves read access to the document catalog
type DocumentHandler struct {
	emailService *services.EmailService
}

// NewDocumentHandler creates a new DocumentHandler instance
func NewDocumentHandler(emailService *services.EmailService) *DocumentHandler {
	return &DocumentHandler{emailService: emailService}
}

// GetDocument returns one document
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.emailService.GetDocument(id)
	if err == services.ErrDocumentNotFound {
		notFound(c, "Document not found")
		return
	}
	if err != nil {
		internalError(c, "Failed to retrieve document")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

// LookupDocument resolves a document by stored path or content hash, so
// a file found in the archive maps back to its catalog row.
// GET /api/documents/lookup?path=... or ?hash=...
func (h *DocumentHandler) LookupDocument(c *gin.Context) {
	if path := c.Query("path"); path != "" {
		doc, err := h.emailService.GetDocumentByPath(path)
		if err == services.ErrDocumentNotFound {
			notFound(c, "No document stored at this path")
			return
		}
		if err != nil {
			internalError(c, "Failed to look up document")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
		return
	}

	if hash := c.Query("hash"); hash != "" {
		docs, err := h.emailService.GetDocumentsByHash(hash)
		if err != nil {
			internalError(c, "Failed to look up documents")
			return
		}
		if len(docs) == 0 {
			notFound(c, "No documents with this hash")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": docs})
		return
	}

	badRequest(c, "Provide either path or hash")
}

// ListDocumentsByCategory returns documents in one category
// GET /api/documents?category=financial&limit=50
func (h *DocumentHandler) ListDocumentsByCategory(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		badRequest(c, "category is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	docs, err := h.emailService.ListDocumentsByCategory(category, limit)
	if err != nil {
		internalError(c, "Failed to retrieve documents")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": docs})
}
