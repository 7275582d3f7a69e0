package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/LeviWoodfall/Regia/internal/config"
	"github.com/LeviWoodfall/Regia/internal/database/models"
	"github.com/LeviWoodfall/Regia/internal/mailbox"
)

// Deduplicator answers "have we stored these bytes before" and builds the
// deterministic storage path for new content. Hashing happens before any
// disk write so duplicates never touch the filesystem.
type Deduplicator struct {
	db      *gorm.DB
	storage config.StorageConfig
}

// NewDeduplicator creates a new Deduplicator instance
func NewDeduplicator(db *gorm.DB, storage config.StorageConfig) *Deduplicator {
	return &Deduplicator{db: db, storage: storage}
}

// HashBytes returns the hex SHA-256 of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FindByHash returns any document in the store with this content hash, or
// nil when the content is new.
func (d *Deduplicator) FindByHash(hash string) (*models.Document, error) {
	var doc models.Document
	err := d.db.Where("sha256_hash = ?", hash).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindForEmail returns this email's own document with the hash, or nil.
// A hit means re-processing the same email, which is a no-op.
func (d *Deduplicator) FindForEmail(emailID uint, hash string) (*models.Document, error) {
	var doc models.Document
	err := d.db.Where("email_id = ? AND sha256_hash = ?", emailID, hash).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// BuildStoragePath returns the archive path for a new file:
// base/accountKey/date/sender/subject/filename, every segment sanitized.
// An existing file at the path gets an incrementing numeric suffix before
// the extension.
func (d *Deduplicator) BuildStoragePath(parsed *mailbox.ParsedEmail, filename string) string {
	maxLen := d.storage.MaxFilenameLength
	if maxLen <= 0 {
		maxLen = 100
	}

	dateDir := "unknown_date"
	if parsed.DateSent != nil {
		format := d.storage.DateFormat
		if format == "" {
			format = "2006-01-02"
		}
		dateDir = parsed.DateSent.Format(format)
	}

	sender := parsed.SenderName
	if sender == "" {
		sender = parsed.SenderEmail
	}
	subject := parsed.Subject
	if subject == "" {
		subject = "no_subject"
	}

	path := filepath.Join(
		d.storage.BaseDir,
		sanitizeSegment(AccountKey(parsed.SenderEmail), maxLen),
		dateDir,
		sanitizeSegment(sender, maxLen),
		sanitizeSegment(subject, maxLen),
		sanitizeSegment(filename, maxLen),
	)

	if _, err := os.Stat(path); err != nil {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// AccountKey derives the per-sender archive directory from the sender
// address: local part and domain joined with an underscore.
func AccountKey(senderEmail string) string {
	at := strings.Index(senderEmail, "@")
	if at < 0 {
		return "unknown"
	}
	return senderEmail[:at] + "_" + senderEmail[at+1:]
}

var (
	illegalSegmentChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// sanitizeSegment makes a string safe as one path segment: illegal
// characters and whitespace runs become underscores, the result is capped
// at maxLen and never empty.
func sanitizeSegment(name string, maxLen int) string {
	sanitized := illegalSegmentChars.ReplaceAllString(name, "_")
	sanitized = whitespaceRun.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "._")
	if maxLen > 0 && len(sanitized) > maxLen {
		sanitized = sanitized[:maxLen]
	}
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}
