package models

import (
	"time"
)

// IngestionStatus is the outcome recorded on an ingestion log entry.
type IngestionStatus string

const (
	IngestionStatusSuccess IngestionStatus = "success"
	IngestionStatusWarning IngestionStatus = "warning"
	IngestionStatusError   IngestionStatus = "error"
)

// IngestionLog is an append-only audit record of ingestion activity.
// Rows are never updated or deleted by the ingestion core.
type IngestionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AccountID  *uint     `gorm:"index" json:"account_id"`
	EmailID    *uint     `gorm:"index" json:"email_id"`
	DocumentID *uint     `gorm:"index" json:"document_id"`
	Action     string    `gorm:"size:100;index" json:"action"`
	Status     string    `gorm:"size:20;index" json:"status"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
