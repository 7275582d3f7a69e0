package services

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviWoodfall/Regia/internal/database/models"
)

func TestLogService_Record(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewLogService(db)
	accountID := uint(1)
	emailID := uint(2)

	require.NoError(t, service.RecordSuccess(&accountID, &emailID, nil, "email_received", "ingested"))
	require.NoError(t, service.RecordWarning(&accountID, nil, nil, "message_skipped", "filtered out"))
	require.NoError(t, service.RecordError(&accountID, nil, nil, "fetch_failed", "dial timeout"))

	var rows []models.IngestionLog
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, string(models.IngestionStatusSuccess), rows[0].Status)
	assert.Equal(t, string(models.IngestionStatusWarning), rows[1].Status)
	assert.Equal(t, string(models.IngestionStatusError), rows[2].Status)
	assert.Equal(t, &emailID, rows[0].EmailID)
	assert.Nil(t, rows[1].EmailID)
	assert.False(t, rows[0].CreatedAt.IsZero())
}

func TestLogService_QueryLogs(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewLogService(db)
	accountA, accountB := uint(1), uint(2)

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordSuccess(&accountA, nil, nil, "email_received", fmt.Sprintf("a%d", i)))
	}
	require.NoError(t, service.RecordError(&accountB, nil, nil, "fetch_failed", "b0"))

	result, err := service.QueryLogs(LogQuery{AccountID: &accountA, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Len(t, result.Logs, 3)

	result, err = service.QueryLogs(LogQuery{Status: string(models.IngestionStatusError)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, "fetch_failed", result.Logs[0].Action)

	result, err = service.QueryLogs(LogQuery{Action: "email_received", Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Len(t, result.Logs, 2)
}

func TestLogService_GetLogsByEmail(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	service := NewLogService(db)
	accountID := uint(1)
	emailA, emailB := uint(10), uint(11)

	require.NoError(t, service.RecordSuccess(&accountID, &emailA, nil, "email_received", "a"))
	require.NoError(t, service.RecordSuccess(&accountID, &emailA, nil, "process_complete", "a"))
	require.NoError(t, service.RecordSuccess(&accountID, &emailB, nil, "email_received", "b"))

	logs, err := service.GetLogsByEmail(emailA)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

// Every recorded operation must land in the audit table with its action,
// status and references intact.
func TestProperty_AuditRecordCompleteness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	db, cleanup := setupServiceTestDB(t)
	defer cleanup()
	service := NewLogService(db)

	actionGen := gen.OneConstOf(
		"email_received", "attachment_saved", "document_reused",
		"invoice_downloaded", "process_complete", "fetch_complete")
	statusGen := gen.OneConstOf(
		models.IngestionStatusSuccess, models.IngestionStatusWarning, models.IngestionStatusError)

	properties.Property("recorded_entry_is_retrievable", prop.ForAll(
		func(accountID uint, action string, status models.IngestionStatus, message string) bool {
			entry := LogEntry{
				AccountID: &accountID,
				Action:    action,
				Status:    status,
				Message:   message,
			}
			if err := service.Record(entry); err != nil {
				return false
			}

			var row models.IngestionLog
			if err := db.Order("id DESC").First(&row).Error; err != nil {
				return false
			}
			return row.Action == action &&
				row.Status == string(status) &&
				row.Message == message &&
				row.AccountID != nil && *row.AccountID == accountID
		},
		gen.UIntRange(1, 1000),
		actionGen,
		statusGen,
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
