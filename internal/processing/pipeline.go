// Package processing turns parsed emails into stored, deduplicated,
// classified documents. The pipeline owns the email status machine:
// pending → processing → completed or error.
package processing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/classify"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/mailbox"
	"github.com/LeviWoodfall/Regia/internal/processing/extract"
	"github.com/LeviWoodfall/Regia/internal/services"
)

// ErrPersistence marks a database write failure. Unlike item-level errors
// it propagates out of the pipeline; a broken store is not recoverable by
// moving on to the next attachment.
var ErrPersistence = errors.New("persistence failure")

// Learner is the optional post-extraction enrichment hook. Failures are
// swallowed; learning never affects ingestion correctness.
type Learner interface {
	LearnDocument(doc *models.Document, text string) error
}

// Options are the per-account knobs the orchestrator resolves before
// handing an email over.
type Options struct {
	MaxAttachmentBytes int64
	DownloadLinks      bool
}

// Result summarizes one email's trip through the pipeline.
type Result struct {
	EmailID            uint
	DocumentsSaved     int
	InvoicesDownloaded int
	Errors             []string
}

// Pipeline processes one email at a time: dedup, store, extract, classify,
// persist, audit.
type Pipeline struct {
	db         *gorm.DB
	dedup      *Deduplicator
	registry   *extract.Registry
	classifier classify.DocumentClassifier
	downloader Downloader
	learner    Learner
	logs       *services.LogService
	log        *logrus.Logger
}

// NewPipeline creates a new Pipeline instance. downloader and learner may
// be nil; the corresponding steps are then skipped.
func NewPipeline(
	db *gorm.DB,
	dedup *Deduplicator,
	registry *extract.Registry,
	classifier classify.DocumentClassifier,
	downloader Downloader,
	learner Learner,
	logs *services.LogService,
	log *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		db:         db,
		dedup:      dedup,
		registry:   registry,
		classifier: classifier,
		downloader: downloader,
		learner:    learner,
		logs:       logs,
		log:        log,
	}
}

// ProcessEmail runs one email through the pipeline. Item-level failures
// are collected in the result; only a persistence failure returns an error.
// Every item persisted before a sibling failure stays persisted.
func (p *Pipeline) ProcessEmail(email *models.Email, parsed *mailbox.ParsedEmail, opts Options) (*Result, error) {
	result := &Result{EmailID: email.ID}

	if err := p.setStatus(email, models.EmailStatusProcessing); err != nil {
		return result, err
	}

	for i := range parsed.Attachments {
		att := &parsed.Attachments[i]
		saved, err := p.processAttachment(email, parsed, att, opts)
		if err != nil {
			if errors.Is(err, ErrPersistence) {
				return result, err
			}
			msg := fmt.Sprintf("failed to process attachment %q: %v", att.Filename, err)
			p.log.WithError(err).WithField("file", att.Filename).Error("attachment processing failed")
			result.Errors = append(result.Errors, msg)
			p.logs.RecordError(&email.AccountID, &email.ID, nil, "attachment_failed", msg)
			continue
		}
		if saved {
			result.DocumentsSaved++
		}
	}

	if opts.DownloadLinks && p.downloader != nil {
		for _, link := range parsed.InvoiceLinks {
			saved, err := p.processInvoiceLink(email, parsed, link)
			if err != nil {
				if errors.Is(err, ErrPersistence) {
					return result, err
				}
				msg := fmt.Sprintf("failed to download invoice from %q: %v", link, err)
				p.log.WithError(err).WithField("url", link).Error("invoice link failed")
				result.Errors = append(result.Errors, msg)
				p.logs.RecordError(&email.AccountID, &email.ID, nil, "invoice_link_failed", msg)
				continue
			}
			if saved {
				result.InvoicesDownloaded++
			}
		}
	}

	p.classifyEmail(email, parsed)

	status := models.EmailStatusCompleted
	logStatus := models.IngestionStatusSuccess
	if len(result.Errors) > 0 {
		status = models.EmailStatusError
		logStatus = models.IngestionStatusWarning
	}
	if err := p.setStatus(email, status); err != nil {
		return result, err
	}

	p.logs.Record(services.LogEntry{
		AccountID: &email.AccountID,
		EmailID:   &email.ID,
		Action:    "process_complete",
		Status:    logStatus,
		Message:   fmt.Sprintf("saved %d documents, %d invoices", result.DocumentsSaved, result.InvoicesDownloaded),
	})

	return result, nil
}

func (p *Pipeline) setStatus(email *models.Email, status models.EmailStatus) error {
	err := p.db.Model(&models.Email{}).Where("id = ?", email.ID).
		Update("status", string(status)).Error
	if err != nil {
		return fmt.Errorf("%w: update email status: %v", ErrPersistence, err)
	}
	email.Status = string(status)
	return nil
}

// processAttachment stores and catalogs one attachment. Returns whether a
// new document row was created.
func (p *Pipeline) processAttachment(email *models.Email, parsed *mailbox.ParsedEmail, att *mailbox.Attachment, opts Options) (bool, error) {
	if _, ok := extract.DetectFileType(att.Filename, att.ContentType); !ok {
		p.logs.RecordWarning(&email.AccountID, &email.ID, nil, "attachment_skipped",
			fmt.Sprintf("unsupported type %q for %q", att.ContentType, att.Filename))
		return false, nil
	}

	if opts.MaxAttachmentBytes > 0 && int64(att.Size) > opts.MaxAttachmentBytes {
		p.logs.RecordWarning(&email.AccountID, &email.ID, nil, "attachment_skipped",
			fmt.Sprintf("%q exceeds size cap (%d bytes)", att.Filename, att.Size))
		return false, nil
	}

	doc, created, err := p.storeContent(email, parsed, storeRequest{
		filename:    att.Filename,
		content:     att.Content,
		contentType: att.ContentType,
		sourceType:  models.SourceAttachment,
	})
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	if created {
		p.logs.RecordSuccess(&email.AccountID, &email.ID, &doc.ID, "attachment_saved",
			fmt.Sprintf("saved %q (%d bytes, hash=%s)", att.Filename, att.Size, shortHash(doc.SHA256Hash)))
	}
	return created, nil
}

// processInvoiceLink downloads and catalogs one link. Non-PDF and oversize
// downloads are recorded as skips, not errors.
func (p *Pipeline) processInvoiceLink(email *models.Email, parsed *mailbox.ParsedEmail, link string) (bool, error) {
	download, err := p.downloader.Fetch(link)
	if err != nil {
		if errors.Is(err, ErrNotPDF) || errors.Is(err, ErrDownloadTooLarge) || errors.Is(err, ErrUnsupportedScheme) {
			p.logs.RecordWarning(&email.AccountID, &email.ID, nil, "invoice_link_skipped",
				fmt.Sprintf("skipped %q: %v", link, err))
			return false, nil
		}
		return false, err
	}

	doc, created, err := p.storeContent(email, parsed, storeRequest{
		filename:    download.Filename,
		content:     download.Content,
		contentType: download.ContentType,
		sourceType:  models.SourceInvoiceLink,
		sourceURL:   link,
	})
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	if created {
		p.logs.RecordSuccess(&email.AccountID, &email.ID, &doc.ID, "invoice_downloaded",
			fmt.Sprintf("downloaded %q from %s", download.Filename, link))
	}
	return created, nil
}

type storeRequest struct {
	filename    string
	content     []byte
	contentType string
	sourceType  models.DocumentSource
	sourceURL   string
}

// storeContent is the shared dedup-store-extract-classify path for both
// attachments and downloads. The returned bool reports whether a new row
// was created (false means an idempotent re-hit of this email's own doc).
func (p *Pipeline) storeContent(email *models.Email, parsed *mailbox.ParsedEmail, req storeRequest) (*models.Document, bool, error) {
	hash := HashBytes(req.content)

	// Same email, same bytes: already done.
	existing, err := p.dedup.FindForEmail(email.ID, hash)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	// Same bytes anywhere: reuse the stored file and its derived fields,
	// write only a new catalog row for this email.
	prior, err := p.dedup.FindByHash(hash)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if prior != nil {
		doc := &models.Document{
			EmailID:             &email.ID,
			OriginalFilename:    req.filename,
			StoredFilename:      prior.StoredFilename,
			StoredPath:          prior.StoredPath,
			FileSize:            prior.FileSize,
			MimeType:            req.contentType,
			SHA256Hash:          hash,
			HashVerified:        prior.HashVerified,
			SourceType:          string(req.sourceType),
			SourceURL:           req.sourceURL,
			Classification:      prior.Classification,
			Category:            prior.Category,
			Classifier:          prior.Classifier,
			ExtractedText:       prior.ExtractedText,
			ExtractionCompleted: prior.ExtractionCompleted,
			Summary:             prior.Summary,
			PageCount:           prior.PageCount,
		}
		if err := p.createDocument(email, hash, doc); err != nil {
			return nil, false, err
		}
		p.logs.RecordSuccess(&email.AccountID, &email.ID, &doc.ID, "document_reused",
			fmt.Sprintf("content %s already stored at %q", shortHash(hash), prior.StoredPath))
		return doc, true, nil
	}

	// New content: write the file, then extract and classify.
	path := p.dedup.BuildStoragePath(parsed, req.filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(path, req.content, 0644); err != nil {
		return nil, false, fmt.Errorf("write file: %w", err)
	}

	hashVerified := false
	if written, err := os.ReadFile(path); err == nil {
		hashVerified = HashBytes(written) == hash
	}

	text, pageCount := p.extractFile(path, req.filename, req.contentType)

	classification, category, summary := p.classifyDocument(req, parsed, text)

	doc := &models.Document{
		EmailID:             &email.ID,
		OriginalFilename:    req.filename,
		StoredFilename:      filepath.Base(path),
		StoredPath:          path,
		FileSize:            int64(len(req.content)),
		MimeType:            req.contentType,
		SHA256Hash:          hash,
		HashVerified:        hashVerified,
		SourceType:          string(req.sourceType),
		SourceURL:           req.sourceURL,
		Classification:      classification,
		Category:            category,
		Classifier:          p.classifierModel(),
		ExtractedText:       text,
		ExtractionCompleted: text != "",
		Summary:             summary,
		PageCount:           pageCount,
	}
	if err := p.createDocument(email, hash, doc); err != nil {
		return nil, false, err
	}

	if p.learner != nil {
		if err := p.learner.LearnDocument(doc, text); err != nil {
			p.log.WithError(err).Debug("learning hook failed")
		}
	}

	return doc, true, nil
}

// createDocument inserts the row, resolving a lost (email, hash) race as
// "already exists" rather than a duplicate.
func (p *Pipeline) createDocument(email *models.Email, hash string, doc *models.Document) error {
	if err := p.db.Create(doc).Error; err != nil {
		if existing, ferr := p.dedup.FindForEmail(email.ID, hash); ferr == nil && existing != nil {
			*doc = *existing
			return nil
		}
		return fmt.Errorf("%w: create document: %v", ErrPersistence, err)
	}
	return nil
}

// extractFile runs the registered extractor for the file type. Extraction
// failures leave the text empty and never abort the pipeline.
func (p *Pipeline) extractFile(path, filename, contentType string) (string, int) {
	fileType, ok := extract.DetectFileType(filename, contentType)
	if !ok {
		return "", 0
	}
	extractor, ok := p.registry.Lookup(fileType)
	if !ok {
		return "", 0
	}

	text, err := extractor.ExtractText(path)
	if err != nil {
		p.log.WithError(err).WithField("file", filename).Warn("text extraction failed")
		text = ""
	}
	pageCount, err := extractor.PageCount(path)
	if err != nil {
		p.log.WithError(err).WithField("file", filename).Warn("page count failed")
		pageCount = 0
	}
	return text, pageCount
}

// classifyDocument asks the collaborator for label, category and summary.
// Any failure degrades to empty values. Link downloads are known invoices
// and keep their fixed labels.
func (p *Pipeline) classifyDocument(req storeRequest, parsed *mailbox.ParsedEmail, text string) (string, string, string) {
	classification, category, summary := "", "", ""

	if req.sourceType == models.SourceInvoiceLink {
		classification, category = "invoice", "financial"
	} else if p.classifier != nil {
		preview := text
		if preview == "" {
			preview = req.filename
		} else if len(preview) > 2000 {
			preview = preview[:2000]
		}
		label, err := p.classifier.ClassifyDocument(req.filename, preview, parsed.Subject)
		if err != nil {
			p.log.WithError(err).Warn("document classification failed")
		} else {
			classification = label
			category = p.classifier.Categorize(label)
		}
	}

	if p.classifier != nil && text != "" {
		preview := text
		if len(preview) > 2000 {
			preview = preview[:2000]
		}
		if s, err := p.classifier.Summarize(preview); err == nil {
			summary = s
		}
	}

	return classification, category, summary
}

// classifyEmail labels and summarizes the email itself. Best-effort; a
// collaborator outage leaves the fields empty.
func (p *Pipeline) classifyEmail(email *models.Email, parsed *mailbox.ParsedEmail) {
	if p.classifier == nil {
		return
	}

	preview := parsed.BodyText
	if len(preview) > 500 {
		preview = preview[:500]
	}
	classification, err := p.classifier.ClassifyEmail(parsed.Subject, parsed.SenderEmail, preview)
	if err != nil {
		p.log.WithError(err).Warn("email classification failed")
		return
	}

	summaryInput := parsed.BodyText
	if len(summaryInput) > 2000 {
		summaryInput = summaryInput[:2000]
	}
	summary, err := p.classifier.Summarize(summaryInput)
	if err != nil {
		summary = ""
	}

	err = p.db.Model(&models.Email{}).Where("id = ?", email.ID).Updates(map[string]interface{}{
		"classification": classification,
		"summary":        summary,
	}).Error
	if err != nil {
		p.log.WithError(err).Warn("failed to persist email classification")
		return
	}
	email.Classification = classification
	email.Summary = summary
}

func (p *Pipeline) classifierModel() string {
	type named interface{ Model() string }
	if m, ok := p.classifier.(named); ok {
		return m.Model()
	}
	return ""
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
