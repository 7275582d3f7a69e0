package models

import (
	"time"
)

// EmailStatus tracks an email through the processing pipeline.
type EmailStatus string

const (
	EmailStatusPending    EmailStatus = "pending"
	EmailStatusProcessing EmailStatus = "processing"
	EmailStatusCompleted  EmailStatus = "completed"
	EmailStatusError      EmailStatus = "error"
)

// Email represents an ingested email message. One row exists per
// (account, message id); status transitions are owned by the pipeline.
type Email struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   uint       `gorm:"not null;uniqueIndex:idx_account_message" json:"account_id"`
	MessageID   string     `gorm:"size:255;not null;uniqueIndex:idx_account_message" json:"message_id"`
	Subject     string     `gorm:"size:500" json:"subject"`
	SenderName  string     `gorm:"size:255" json:"sender_name"`
	SenderEmail string     `gorm:"size:255;index" json:"sender_email"`
	Recipients  string     `gorm:"type:text" json:"recipients"` // JSON array stored as string
	DateSent    *time.Time `gorm:"index" json:"date_sent"`
	BodyText    string     `gorm:"type:text" json:"body_text"`
	BodyHTML    string     `gorm:"type:text" json:"body_html"`

	HasAttachments  bool   `gorm:"default:false" json:"has_attachments"`
	HasInvoiceLinks bool   `gorm:"default:false" json:"has_invoice_links"`
	Status          string `gorm:"size:20;index;default:'pending'" json:"status"`
	Classification  string `gorm:"size:100" json:"classification"`
	Summary         string `gorm:"type:text" json:"summary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Documents []Document `gorm:"foreignKey:EmailID" json:"documents,omitempty"`
}
