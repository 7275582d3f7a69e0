package processing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LeviWoodfall/Regia/internal/config"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/mailbox"
	"github.com/LeviWoodfall/Regia/internal/processing/extract"
	"github.com/LeviWoodfall/Regia/internal/services"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// stubClassifier is a deterministic DocumentClassifier collaborator.
type stubClassifier struct {
	label string
	fail  bool
}

func (s *stubClassifier) ClassifyDocument(filename, text, emailSubject string) (string, error) {
	if s.fail {
		return "", errors.New("classifier unavailable")
	}
	return s.label, nil
}

func (s *stubClassifier) Categorize(label string) string {
	if label == "invoice" {
		return "financial"
	}
	return "general"
}

func (s *stubClassifier) ClassifyEmail(subject, sender, bodyPreview string) (string, error) {
	if s.fail {
		return "", errors.New("classifier unavailable")
	}
	return s.label, nil
}

func (s *stubClassifier) Summarize(text string) (string, error) {
	if s.fail {
		return "", errors.New("classifier unavailable")
	}
	return "a short summary", nil
}

// stubDownloader returns canned content or a canned error.
type stubDownloader struct {
	download *Download
	err      error
}

func (s *stubDownloader) Fetch(rawURL string) (*Download, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.download, nil
}

type pipelineFixture struct {
	db       *gorm.DB
	pipeline *Pipeline
	account  *models.MailAccount
	baseDir  string
	cleanup  func()
}

func setupPipeline(t *testing.T, classifier *stubClassifier, downloader Downloader) *pipelineFixture {
	tmpFile, err := os.CreateTemp("", "pipeline_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(&models.MailAccount{}, &models.Email{}, &models.Document{}, &models.IngestionLog{})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	account := &models.MailAccount{Email: "dest@example.com", IMAPHost: "imap.example.com"}
	require.NoError(t, db.Create(account).Error)

	baseDir := t.TempDir()
	dedup := NewDeduplicator(db, config.StorageConfig{
		BaseDir:           baseDir,
		DateFormat:        "2006-01-02",
		MaxFilenameLength: 100,
	})

	pipeline := NewPipeline(db, dedup, extract.NewRegistry(), classifier, downloader, nil,
		services.NewLogService(db), testLogger())

	return &pipelineFixture{
		db:       db,
		pipeline: pipeline,
		account:  account,
		baseDir:  baseDir,
		cleanup: func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
			os.Remove(tmpFile.Name())
		},
	}
}

func (f *pipelineFixture) newEmail(t *testing.T, messageID string) *models.Email {
	email := &models.Email{
		AccountID:   f.account.ID,
		MessageID:   messageID,
		Subject:     "March invoice",
		SenderEmail: "billing@acme.example",
		Status:      string(models.EmailStatusPending),
	}
	require.NoError(t, f.db.Create(email).Error)
	return email
}

func parsedWithAttachment(filename string, content []byte) *mailbox.ParsedEmail {
	sent := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	return &mailbox.ParsedEmail{
		MessageID:   "<m@acme.example>",
		Subject:     "March invoice",
		SenderName:  "Acme",
		SenderEmail: "billing@acme.example",
		DateSent:    &sent,
		BodyText:    "invoice attached",
		Attachments: []mailbox.Attachment{{
			Filename:    filename,
			ContentType: "application/pdf",
			Content:     content,
			Size:        len(content),
		}},
	}
}

func (f *pipelineFixture) storedFiles(t *testing.T) []string {
	var files []string
	err := filepath.Walk(f.baseDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestPipeline_SavesAttachment(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "invoice"}, nil)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	content := []byte("%PDF-1.4\ninvoice body")
	parsed := parsedWithAttachment("invoice.pdf", content)

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsSaved)
	assert.Empty(t, result.Errors)
	assert.Equal(t, string(models.EmailStatusCompleted), email.Status)

	var doc models.Document
	require.NoError(t, f.db.Where("email_id = ?", email.ID).First(&doc).Error)
	assert.Equal(t, "invoice.pdf", doc.OriginalFilename)
	assert.Equal(t, HashBytes(content), doc.SHA256Hash)
	assert.True(t, doc.HashVerified)
	assert.Equal(t, string(models.SourceAttachment), doc.SourceType)
	assert.Equal(t, "invoice", doc.Classification)
	assert.Equal(t, "financial", doc.Category)
	// No extractor registered for the type: degraded, not failed.
	assert.False(t, doc.ExtractionCompleted)
	assert.Empty(t, doc.ExtractedText)

	stored, err := os.ReadFile(doc.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	var refreshed models.Email
	require.NoError(t, f.db.First(&refreshed, email.ID).Error)
	assert.Equal(t, "invoice", refreshed.Classification)
	assert.Equal(t, "a short summary", refreshed.Summary)
}

func TestPipeline_ReprocessingIsIdempotent(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "invoice"}, nil)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := parsedWithAttachment("invoice.pdf", []byte("%PDF-1.4\nsame bytes"))

	first, err := f.pipeline.ProcessEmail(email, parsed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.DocumentsSaved)

	second, err := f.pipeline.ProcessEmail(email, parsed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.DocumentsSaved)

	var count int64
	f.db.Model(&models.Document{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.storedFiles(t), 1)
}

func TestPipeline_DeduplicatesAcrossEmails(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "invoice"}, nil)
	defer f.cleanup()

	content := []byte("%PDF-1.4\nshared bytes")

	emailA := f.newEmail(t, "<a@acme.example>")
	resultA, err := f.pipeline.ProcessEmail(emailA, parsedWithAttachment("invoice.pdf", content), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, resultA.DocumentsSaved)

	emailB := f.newEmail(t, "<b@acme.example>")
	resultB, err := f.pipeline.ProcessEmail(emailB, parsedWithAttachment("copy_of_invoice.pdf", content), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, resultB.DocumentsSaved)

	// Two catalog rows, one physical file.
	var docs []models.Document
	require.NoError(t, f.db.Order("id").Find(&docs).Error)
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0].StoredPath, docs[1].StoredPath)
	assert.Equal(t, docs[0].SHA256Hash, docs[1].SHA256Hash)
	assert.Equal(t, "copy_of_invoice.pdf", docs[1].OriginalFilename)
	assert.Equal(t, docs[0].Classification, docs[1].Classification)
	assert.Len(t, f.storedFiles(t), 1)

	var reuseLogs int64
	f.db.Model(&models.IngestionLog{}).Where("action = ?", "document_reused").Count(&reuseLogs)
	assert.Equal(t, int64(1), reuseLogs)
}

func TestPipeline_ClassifierOutageStillPersists(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{fail: true}, nil)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	result, err := f.pipeline.ProcessEmail(email, parsedWithAttachment("invoice.pdf", []byte("%PDF-1.4\nbody")), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsSaved)
	assert.Empty(t, result.Errors)
	assert.Equal(t, string(models.EmailStatusCompleted), email.Status)

	var doc models.Document
	require.NoError(t, f.db.Where("email_id = ?", email.ID).First(&doc).Error)
	assert.Empty(t, doc.Classification)
	assert.Empty(t, doc.Category)
}

func TestPipeline_SkipsUnsupportedAttachment(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "other"}, nil)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := parsedWithAttachment("setup.exe", []byte("MZ..."))
	parsed.Attachments[0].ContentType = "application/octet-stream"

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsSaved)
	assert.Empty(t, result.Errors)

	var skips int64
	f.db.Model(&models.IngestionLog{}).Where("action = ?", "attachment_skipped").Count(&skips)
	assert.Equal(t, int64(1), skips)
}

func TestPipeline_SkipsOversizedAttachment(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "invoice"}, nil)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := parsedWithAttachment("invoice.pdf", []byte("%PDF-1.4\ntoo big for the cap"))

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{MaxAttachmentBytes: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsSaved)
	assert.Empty(t, result.Errors)
}

func TestPipeline_DownloadsInvoiceLink(t *testing.T) {
	downloader := &stubDownloader{download: &Download{
		Filename:    "statement.pdf",
		Content:     []byte("%PDF-1.4\ndownloaded"),
		ContentType: "application/pdf",
	}}
	f := setupPipeline(t, &stubClassifier{label: "other"}, downloader)
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := parsedWithAttachment("invoice.pdf", []byte("%PDF-1.4\nattachment"))
	parsed.InvoiceLinks = []string{"https://billing.acme.example/invoice/123.pdf"}

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{DownloadLinks: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.InvoicesDownloaded)

	var doc models.Document
	require.NoError(t, f.db.Where("source_type = ?", string(models.SourceInvoiceLink)).First(&doc).Error)
	assert.Equal(t, "https://billing.acme.example/invoice/123.pdf", doc.SourceURL)
	// Link downloads are known invoices regardless of the classifier.
	assert.Equal(t, "invoice", doc.Classification)
	assert.Equal(t, "financial", doc.Category)
}

func TestPipeline_NonPDFLinkIsSkippedQuietly(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "other"}, &stubDownloader{err: ErrNotPDF})
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := &mailbox.ParsedEmail{
		SenderEmail:  "billing@acme.example",
		InvoiceLinks: []string{"https://acme.example/download/page"},
	}

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{DownloadLinks: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.InvoicesDownloaded)
	assert.Empty(t, result.Errors)
	assert.Equal(t, string(models.EmailStatusCompleted), email.Status)
}

func TestPipeline_DownloadFailureMarksEmail(t *testing.T) {
	f := setupPipeline(t, &stubClassifier{label: "other"}, &stubDownloader{err: errors.New("connection refused")})
	defer f.cleanup()

	email := f.newEmail(t, "<m1@acme.example>")
	parsed := &mailbox.ParsedEmail{
		SenderEmail:  "billing@acme.example",
		InvoiceLinks: []string{"https://acme.example/invoice/1.pdf"},
	}

	result, err := f.pipeline.ProcessEmail(email, parsed, Options{DownloadLinks: true})
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, string(models.EmailStatusError), email.Status)
}
