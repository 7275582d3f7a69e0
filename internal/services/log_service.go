package services

import (
	"time"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"gorm.io/gorm"
)

// LogService records the append-only ingestion audit trail. Entries are
// never mutated or deleted; queries are read-only views for the API.
type LogService struct {
	db *gorm.DB
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// LogEntry represents one audit record to be appended
type LogEntry struct {
	AccountID  *uint
	EmailID    *uint
	DocumentID *uint
	Action     string
	Status     models.IngestionStatus
	Message    string
}

// Record appends one entry to the ingestion log.
func (s *LogService) Record(entry LogEntry) error {
	row := &models.IngestionLog{
		AccountID:  entry.AccountID,
		EmailID:    entry.EmailID,
		DocumentID: entry.DocumentID,
		Action:     entry.Action,
		Status:     string(entry.Status),
		Message:    entry.Message,
	}
	return s.db.Create(row).Error
}

// RecordSuccess appends a success entry.
func (s *LogService) RecordSuccess(accountID, emailID, documentID *uint, action, message string) error {
	return s.Record(LogEntry{
		AccountID:  accountID,
		EmailID:    emailID,
		DocumentID: documentID,
		Action:     action,
		Status:     models.IngestionStatusSuccess,
		Message:    message,
	})
}

// RecordWarning appends a warning entry for a skip or degraded step.
func (s *LogService) RecordWarning(accountID, emailID, documentID *uint, action, message string) error {
	return s.Record(LogEntry{
		AccountID:  accountID,
		EmailID:    emailID,
		DocumentID: documentID,
		Action:     action,
		Status:     models.IngestionStatusWarning,
		Message:    message,
	})
}

// RecordError appends an error entry.
func (s *LogService) RecordError(accountID, emailID, documentID *uint, action, message string) error {
	return s.Record(LogEntry{
		AccountID:  accountID,
		EmailID:    emailID,
		DocumentID: documentID,
		Action:     action,
		Status:     models.IngestionStatusError,
		Message:    message,
	})
}

// LogQuery represents query parameters for log retrieval
type LogQuery struct {
	AccountID *uint
	EmailID   *uint
	Action    string
	Status    string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	Limit     int
}

// LogQueryResult represents the result of a log query
type LogQueryResult struct {
	Total int64
	Logs  []models.IngestionLog
}

// QueryLogs retrieves log entries based on query parameters
func (s *LogService) QueryLogs(query LogQuery) (*LogQueryResult, error) {
	db := s.db.Model(&models.IngestionLog{})

	if query.AccountID != nil {
		db = db.Where("account_id = ?", *query.AccountID)
	}
	if query.EmailID != nil {
		db = db.Where("email_id = ?", *query.EmailID)
	}
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	offset := (query.Page - 1) * query.Limit

	var logs []models.IngestionLog
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.Limit).Find(&logs).Error; err != nil {
		return nil, err
	}

	return &LogQueryResult{Total: total, Logs: logs}, nil
}

// GetRecentLogs retrieves the most recent log entries
func (s *LogService) GetRecentLogs(limit int) ([]models.IngestionLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var logs []models.IngestionLog
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetLogsByEmail retrieves the audit trail for one email.
func (s *LogService) GetLogsByEmail(emailID uint) ([]models.IngestionLog, error) {
	var logs []models.IngestionLog
	if err := s.db.Where("email_id = ?", emailID).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
