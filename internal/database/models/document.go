package models

import (
	"time"
)

// DocumentSource tells where a document's bytes came from.
type DocumentSource string

const (
	// SourceAttachment means the bytes were decoded from a MIME part
	SourceAttachment DocumentSource = "attachment"
	// SourceInvoiceLink means the bytes were downloaded from a link in the body
	SourceInvoiceLink DocumentSource = "invoice_link"
)

// Document represents one stored, content-addressed file extracted from an
// email. At most one physical file exists per content hash, and at most one
// row exists per (email, hash) pair.
type Document struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	EmailID *uint `gorm:"uniqueIndex:idx_email_hash" json:"email_id"` // nullable for standalone captures

	OriginalFilename string `gorm:"size:500" json:"original_filename"`
	StoredFilename   string `gorm:"size:500" json:"stored_filename"`
	StoredPath       string `gorm:"size:1000;index" json:"stored_path"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"size:100" json:"mime_type"`
	SHA256Hash       string `gorm:"size:64;index;uniqueIndex:idx_email_hash" json:"sha256_hash"`
	HashVerified     bool   `gorm:"default:false" json:"hash_verified"`

	SourceType string `gorm:"size:20" json:"source_type"`
	SourceURL  string `gorm:"size:1000" json:"source_url"`

	Classification      string `gorm:"size:100" json:"classification"`
	Category            string `gorm:"size:100" json:"category"`
	Classifier          string `gorm:"size:100" json:"classifier"` // model that produced the label
	ExtractedText       string `gorm:"type:text" json:"extracted_text"`
	ExtractionCompleted bool   `gorm:"default:false" json:"extraction_completed"`
	Summary             string `gorm:"type:text" json:"summary"`
	PageCount           int    `gorm:"default:0" json:"page_count"`

	CreatedAt time.Time `json:"created_at"`
}
