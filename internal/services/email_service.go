package services

import (
	"errors"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrEmailNotFound indicates the email was not found
	ErrEmailNotFound = errors.New("email not found")
	// ErrDocumentNotFound indicates the document was not found
	ErrDocumentNotFound = errors.New("document not found")
)

// EmailService is the read surface over ingested emails and documents.
// Writes belong to the pipeline; this service never mutates rows.
type EmailService struct {
	db *gorm.DB
}

// NewEmailService creates a new EmailService instance
func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{db: db}
}

// GetEmail retrieves one email with its documents
func (s *EmailService) GetEmail(id uint) (*models.Email, error) {
	var email models.Email
	if err := s.db.Preload("Documents").First(&email, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	return &email, nil
}

// ListEmailsByStatus returns emails in a processing state, oldest first.
func (s *EmailService) ListEmailsByStatus(status models.EmailStatus, limit int) ([]models.Email, error) {
	if limit <= 0 {
		limit = 100
	}

	var emails []models.Email
	err := s.db.Where("status = ?", string(status)).
		Order("created_at ASC").Limit(limit).Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// ListEmailsByAccount returns an account's emails, newest first.
func (s *EmailService) ListEmailsByAccount(accountID uint, limit int) ([]models.Email, error) {
	if limit <= 0 {
		limit = 100
	}

	var emails []models.Email
	err := s.db.Where("account_id = ?", accountID).
		Order("created_at DESC").Limit(limit).Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// GetDocument retrieves one document by ID
func (s *EmailService) GetDocument(id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByPath maps a filesystem path in the archive back to its
// document row, so external tooling can resolve files it finds on disk.
func (s *EmailService) GetDocumentByPath(storedPath string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Where("stored_path = ?", storedPath).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocumentsByHash returns every catalog row sharing one content hash.
func (s *EmailService) GetDocumentsByHash(hash string) ([]models.Document, error) {
	var docs []models.Document
	if err := s.db.Where("sha256_hash = ?", hash).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// ListDocumentsByCategory returns documents in one category, newest first.
func (s *EmailService) ListDocumentsByCategory(category string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	var docs []models.Document
	err := s.db.Where("category = ?", category).
		Order("created_at DESC").Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
