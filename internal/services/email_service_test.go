package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/database/models"
)

func seedEmail(t *testing.T, db *gorm.DB, messageID string, status models.EmailStatus) *models.Email {
	email := &models.Email{
		AccountID:   1,
		MessageID:   messageID,
		Subject:     "subject " + messageID,
		SenderEmail: "billing@acme.example",
		Status:      string(status),
	}
	require.NoError(t, db.Create(email).Error)
	return email
}

func TestEmailService_GetEmail(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewEmailService(db)
	email := seedEmail(t, db, "<m1@acme.example>", models.EmailStatusCompleted)
	require.NoError(t, db.Create(&models.Document{
		EmailID:    &email.ID,
		SHA256Hash: "abc123",
		StoredPath: "/archive/a.pdf",
	}).Error)

	got, err := service.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "<m1@acme.example>", got.MessageID)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "/archive/a.pdf", got.Documents[0].StoredPath)

	_, err = service.GetEmail(9999)
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestEmailService_ListEmailsByStatus(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewEmailService(db)
	seedEmail(t, db, "<a@acme.example>", models.EmailStatusPending)
	seedEmail(t, db, "<b@acme.example>", models.EmailStatusPending)
	seedEmail(t, db, "<c@acme.example>", models.EmailStatusCompleted)

	pending, err := service.ListEmailsByStatus(models.EmailStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Oldest first: pending work is drained in arrival order.
	assert.Equal(t, "<a@acme.example>", pending[0].MessageID)

	completed, err := service.ListEmailsByStatus(models.EmailStatusCompleted, 0)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestEmailService_DocumentLookups(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewEmailService(db)
	emailA := seedEmail(t, db, "<a@acme.example>", models.EmailStatusCompleted)
	emailB := seedEmail(t, db, "<b@acme.example>", models.EmailStatusCompleted)

	hash := "feedface"
	require.NoError(t, db.Create(&models.Document{
		EmailID: &emailA.ID, SHA256Hash: hash, StoredPath: "/archive/x.pdf", Category: "financial",
	}).Error)
	require.NoError(t, db.Create(&models.Document{
		EmailID: &emailB.ID, SHA256Hash: hash, StoredPath: "/archive/x.pdf", Category: "financial",
	}).Error)

	byPath, err := service.GetDocumentByPath("/archive/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, hash, byPath.SHA256Hash)

	_, err = service.GetDocumentByPath("/archive/missing.pdf")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	byHash, err := service.GetDocumentsByHash(hash)
	require.NoError(t, err)
	assert.Len(t, byHash, 2)

	byCategory, err := service.ListDocumentsByCategory("financial", 0)
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	byCategory, err = service.ListDocumentsByCategory("legal", 0)
	require.NoError(t, err)
	assert.Empty(t, byCategory)
}
