// Package ingest drives one account run end to end: connect, search,
// filter, fetch, parse, persist, process, post-action. Runs are sequential
// within an account and safe to invoke concurrently across accounts.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/credentials"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/mailbox"
	"github.com/LeviWoodfall/Regia/internal/processing"
	"github.com/LeviWoodfall/Regia/internal/services"
)

// Mailbox is the connector surface the orchestrator drives. The IMAP
// implementation lives in the mailbox package; tests substitute a fake.
type Mailbox interface {
	Connect() error
	Disconnect()
	Select(folder string, writable bool) (uint32, error)
	Search(status string) ([]uint32, error)
	SearchHeader(name, value string) ([]uint32, error)
	FetchFull(seqNum uint32) ([]byte, error)
	MarkRead(seqNum uint32) error
	Move(seqNum uint32, destFolder string) error
	Delete(seqNum uint32) error
	Archive(seqNum uint32) error
}

// MailboxFactory builds a session for one account.
type MailboxFactory func(account *models.MailAccount) Mailbox

// IMAPMailboxFactory is the production factory backed by the IMAP connector.
func IMAPMailboxFactory(creds credentials.Lookup, log *logrus.Logger) MailboxFactory {
	return func(account *models.MailAccount) Mailbox {
		return mailbox.NewConnector(account, creds, log)
	}
}

// RunSummary is the sole contract surfaced to the triggering caller.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	AccountID    uint      `json:"account_id"`
	AccountEmail string    `json:"account_email"`
	Found        int       `json:"found"`
	New          int       `json:"new"`
	Processed    int       `json:"processed"`
	Skipped      int       `json:"skipped"`
	PostActions  int       `json:"post_actions"`
	Errors       []string  `json:"errors"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Orchestrator runs ingestion for accounts.
type Orchestrator struct {
	db         *gorm.DB
	pipeline   *processing.Pipeline
	logs       *services.LogService
	newMailbox MailboxFactory
	log        *logrus.Logger
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(db *gorm.DB, pipeline *processing.Pipeline, logs *services.LogService, factory MailboxFactory, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		db:         db,
		pipeline:   pipeline,
		logs:       logs,
		newMailbox: factory,
		log:        log,
	}
}

// Run ingests one account. Safe to call repeatedly: already-ingested
// messages are skipped. A connect/auth failure aborts the run with one
// error; per-message failures never do. The last-sync timestamp is updated
// unconditionally, success or partial failure.
func (o *Orchestrator) Run(account *models.MailAccount) *RunSummary {
	summary := &RunSummary{
		RunID:        uuid.New().String(),
		AccountID:    account.ID,
		AccountEmail: account.Email,
		StartedAt:    time.Now().UTC(),
	}
	runLog := o.log.WithFields(logrus.Fields{
		"run":     summary.RunID,
		"account": account.Email,
	})

	defer func() {
		summary.FinishedAt = time.Now().UTC()
		if err := o.db.Model(&models.MailAccount{}).Where("id = ?", account.ID).
			Update("last_sync_at", summary.FinishedAt).Error; err != nil {
			runLog.WithError(err).Warn("failed to update last sync time")
		}

		status := models.IngestionStatusSuccess
		if len(summary.Errors) > 0 {
			status = models.IngestionStatusWarning
		}
		o.logs.Record(services.LogEntry{
			AccountID: &account.ID,
			Action:    "fetch_complete",
			Status:    status,
			Message: fmt.Sprintf("found %d, new %d, processed %d, skipped %d, post-actions %d",
				summary.Found, summary.New, summary.Processed, summary.Skipped, summary.PostActions),
		})
	}()

	mbox := o.newMailbox(account)
	if err := mbox.Connect(); err != nil {
		msg := fmt.Sprintf("connection failed: %v", err)
		summary.Errors = append(summary.Errors, msg)
		o.logs.RecordError(&account.ID, nil, nil, "fetch_failed", msg)
		runLog.WithError(err).Error("account run aborted")
		return summary
	}
	defer mbox.Disconnect()

	action := account.ResolvePostAction()

	for _, folder := range account.FolderList() {
		if aborted := o.runFolder(mbox, account, folder, action, summary, runLog); aborted {
			return summary
		}
	}

	runLog.WithFields(logrus.Fields{
		"found":     summary.Found,
		"new":       summary.New,
		"processed": summary.Processed,
	}).Info("account run finished")
	return summary
}

// runFolder scans one folder. The returned bool signals a persistence
// failure, which aborts the whole run.
func (o *Orchestrator) runFolder(mbox Mailbox, account *models.MailAccount, folder string, action models.PostAction, summary *RunSummary, runLog *logrus.Entry) bool {
	count, err := mbox.Select(folder, action.RequiresWrite())
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("folder %q: %v", folder, err))
		return false
	}
	runLog.WithFields(logrus.Fields{"folder": folder, "messages": count}).Debug("folder selected")

	seqNums, err := mbox.Search(account.SearchCriteria)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("folder %q: %v", folder, err))
		return false
	}
	summary.Found += len(seqNums)

	if account.MaxPerFetch > 0 && len(seqNums) > account.MaxPerFetch {
		seqNums = seqNums[:account.MaxPerFetch]
	}

	opts := processing.Options{
		MaxAttachmentBytes: int64(account.MaxAttachmentMB) * 1024 * 1024,
		DownloadLinks:      account.DownloadLinks,
	}

	for _, seqNum := range seqNums {
		aborted, err := o.ingestMessage(mbox, account, folder, seqNum, action, opts, summary)
		if aborted {
			summary.Errors = append(summary.Errors, err.Error())
			return true
		}
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("message %d in %q: %v", seqNum, folder, err))
		}
	}
	return false
}

// ingestMessage handles one message. The returned bool signals an abort
// (persistence failure); a plain error is per-message and recoverable.
func (o *Orchestrator) ingestMessage(mbox Mailbox, account *models.MailAccount, folder string, seqNum uint32, action models.PostAction, opts processing.Options, summary *RunSummary) (bool, error) {
	raw, err := mbox.FetchFull(seqNum)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		summary.Skipped++
		return false, nil
	}

	parsed, err := mailbox.ParseMessage(raw, o.log)
	if err != nil {
		summary.Skipped++
		o.logs.RecordWarning(&account.ID, nil, nil, "parse_failed",
			fmt.Sprintf("malformed message %d in %q: %v", seqNum, folder, err))
		return false, nil
	}

	if !o.passesFilters(account, parsed) {
		summary.Skipped++
		o.logs.RecordWarning(&account.ID, nil, nil, "message_skipped",
			fmt.Sprintf("message %q filtered out", parsed.MessageID))
		return false, nil
	}

	// Idempotency: an existing row for (account, message-id) is a silent skip.
	var existing models.Email
	err = o.db.Where("account_id = ? AND message_id = ?", account.ID, parsed.MessageID).
		First(&existing).Error
	if err == nil {
		summary.Skipped++
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return true, fmt.Errorf("email lookup failed: %w", err)
	}

	email, err := o.storeEmail(account, parsed)
	if err != nil {
		if email != nil {
			// Lost a race to a concurrent run; treat as already ingested.
			summary.Skipped++
			return false, nil
		}
		return true, err
	}
	summary.New++

	o.log.WithFields(logrus.Fields{
		"message_id": parsed.MessageID,
		"subject":    parsed.Subject,
		"from":       parsed.SenderEmail,
	}).Info("ingested email")

	result, err := o.pipeline.ProcessEmail(email, parsed, opts)
	if err != nil {
		return true, err
	}
	summary.Processed++
	summary.Errors = append(summary.Errors, result.Errors...)

	if action.Kind != models.PostActionNone {
		if err := o.applyPostAction(mbox, seqNum, action); err != nil {
			o.logs.RecordWarning(&account.ID, &email.ID, nil, "post_action_failed",
				fmt.Sprintf("%s failed for message %q: %v", action.Kind, parsed.MessageID, err))
			return false, fmt.Errorf("post-action %s: %w", action.Kind, err)
		}
		summary.PostActions++
	}

	return false, nil
}

// passesFilters applies the account's age cutoff and attachment filter.
func (o *Orchestrator) passesFilters(account *models.MailAccount, parsed *mailbox.ParsedEmail) bool {
	if account.MaxAgeDays > 0 && parsed.DateSent != nil {
		cutoff := time.Now().AddDate(0, 0, -account.MaxAgeDays)
		if parsed.DateSent.Before(cutoff) {
			return false
		}
	}
	if account.RequireAttachments && len(parsed.Attachments) == 0 {
		return false
	}
	return true
}

// storeEmail persists a new Email row. A duplicate-key failure returns the
// already-existing row along with the error so callers can treat the race
// as "already ingested".
func (o *Orchestrator) storeEmail(account *models.MailAccount, parsed *mailbox.ParsedEmail) (*models.Email, error) {
	recipients, _ := json.Marshal(parsed.Recipients)

	email := &models.Email{
		AccountID:       account.ID,
		MessageID:       parsed.MessageID,
		Subject:         parsed.Subject,
		SenderName:      parsed.SenderName,
		SenderEmail:     parsed.SenderEmail,
		Recipients:      string(recipients),
		DateSent:        parsed.DateSent,
		BodyText:        parsed.BodyText,
		BodyHTML:        parsed.BodyHTML,
		HasAttachments:  len(parsed.Attachments) > 0,
		HasInvoiceLinks: len(parsed.InvoiceLinks) > 0,
		Status:          string(models.EmailStatusPending),
	}

	if err := o.db.Create(email).Error; err != nil {
		var raced models.Email
		ferr := o.db.Where("account_id = ? AND message_id = ?", account.ID, parsed.MessageID).
			First(&raced).Error
		if ferr == nil {
			return &raced, fmt.Errorf("email already exists: %w", err)
		}
		return nil, fmt.Errorf("create email failed: %w", err)
	}

	o.logs.RecordSuccess(&account.ID, &email.ID, nil, "email_received",
		fmt.Sprintf("ingested %q from %s", parsed.Subject, parsed.SenderEmail))
	return email, nil
}

func (o *Orchestrator) applyPostAction(mbox Mailbox, seqNum uint32, action models.PostAction) error {
	switch action.Kind {
	case models.PostActionMarkRead:
		return mbox.MarkRead(seqNum)
	case models.PostActionMove:
		return mbox.Move(seqNum, action.Folder)
	case models.PostActionDelete:
		return mbox.Delete(seqNum)
	case models.PostActionArchive:
		return mbox.Archive(seqNum)
	}
	return nil
}

// Refresh re-fetches one already-ingested email by message id, re-locating
// it with a header search since sequence numbers do not survive sessions.
// Body fields are refreshed in place; documents are left untouched.
func (o *Orchestrator) Refresh(account *models.MailAccount, messageID string) error {
	var email models.Email
	if err := o.db.Where("account_id = ? AND message_id = ?", account.ID, messageID).
		First(&email).Error; err != nil {
		return fmt.Errorf("unknown email: %w", err)
	}

	mbox := o.newMailbox(account)
	if err := mbox.Connect(); err != nil {
		return err
	}
	defer mbox.Disconnect()

	for _, folder := range account.FolderList() {
		if _, err := mbox.Select(folder, false); err != nil {
			continue
		}
		seqNums, err := mbox.SearchHeader("Message-Id", messageID)
		if err != nil || len(seqNums) == 0 {
			continue
		}

		raw, err := mbox.FetchFull(seqNums[0])
		if err != nil || len(raw) == 0 {
			continue
		}
		parsed, err := mailbox.ParseMessage(raw, o.log)
		if err != nil {
			return fmt.Errorf("re-parse failed: %w", err)
		}

		return o.db.Model(&models.Email{}).Where("id = ?", email.ID).
			Updates(map[string]interface{}{
				"subject":   parsed.Subject,
				"body_text": parsed.BodyText,
				"body_html": parsed.BodyHTML,
			}).Error
	}

	return fmt.Errorf("message %q not found in any configured folder", messageID)
}
