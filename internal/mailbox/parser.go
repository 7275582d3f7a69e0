package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// Attachment is one file carried by an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Size        int
	ContentID   string
}

// ParsedEmail is the structured form of one raw message. Immutable once
// produced; parsing performs no I/O.
type ParsedEmail struct {
	MessageID    string
	Subject      string
	SenderName   string
	SenderEmail  string
	Recipients   []string
	DateSent     *time.Time
	BodyText     string
	BodyHTML     string
	Attachments  []Attachment
	InvoiceLinks []string
	HasPDF       bool
	RawHeaders   map[string][]string
}

// maxPartDepth bounds the multipart nesting the walker will descend into.
// Deeper parts are skipped, never a parse failure.
const maxPartDepth = 10

var invoiceLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://[^\s<>"]+(?:invoice|receipt|statement|bill|document|download|pdf)[^\s<>"]*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"]+\.pdf(?:\?[^\s<>"]*)?`),
	regexp.MustCompile(`(?i)https?://[^\s<>"]+/(?:download|get|fetch|view)/[^\s<>"]+`),
}

var anyURLPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

var invoiceKeywords = []string{
	"invoice", "receipt", "statement", "bill", "download",
	"pdf", "document", "payment", "order", "confirmation",
}

// ParseMessage parses raw RFC822 bytes into a ParsedEmail. Individual part
// failures are logged and skipped; only an unreadable envelope is an error.
func ParseMessage(raw []byte, log *logrus.Logger) (*ParsedEmail, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}

	parsed := &ParsedEmail{RawHeaders: make(map[string][]string)}
	header := gomail.Header{Header: entity.Header}

	fields := entity.Header.Fields()
	for fields.Next() {
		key := fields.Key()
		parsed.RawHeaders[key] = append(parsed.RawHeaders[key], fields.Value())
	}

	parsed.MessageID = strings.TrimSpace(entity.Header.Get("Message-Id"))
	if subject, err := header.Subject(); err == nil {
		parsed.Subject = strings.TrimSpace(subject)
	} else {
		parsed.Subject = strings.TrimSpace(entity.Header.Get("Subject"))
	}

	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.SenderName = from[0].Name
		parsed.SenderEmail = from[0].Address
	}

	for _, key := range []string{"To", "Cc"} {
		addrs, err := header.AddressList(key)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr.Address != "" {
				parsed.Recipients = append(parsed.Recipients, addr.Address)
			}
		}
	}

	// Unparsable or missing dates stay nil, never fatal.
	if date, err := header.Date(); err == nil && !date.IsZero() {
		parsed.DateSent = &date
	}

	walkParts(entity, parsed, log)

	parsed.InvoiceLinks = extractInvoiceLinks(parsed.BodyText + " " + parsed.BodyHTML)

	for _, a := range parsed.Attachments {
		if a.ContentType == "application/pdf" || strings.HasSuffix(strings.ToLower(a.Filename), ".pdf") {
			parsed.HasPDF = true
			break
		}
	}

	return parsed, nil
}

// walkParts traverses the MIME tree with an explicit stack so nesting depth
// is bounded regardless of how the message is structured. Leaves are visited
// in tree order, so repeated text parts concatenate deterministically.
func walkParts(root *message.Entity, parsed *ParsedEmail, log *logrus.Logger) {
	mr := root.MultipartReader()
	if mr == nil {
		collectLeaf(root, parsed, log)
		return
	}

	stack := []message.MultipartReader{mr}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		part, err := top.NextPart()
		if err == io.EOF {
			stack = stack[:len(stack)-1]
			continue
		}
		if err != nil {
			if log != nil {
				log.WithError(err).Warn("failed to read message part")
			}
			stack = stack[:len(stack)-1]
			continue
		}

		if nested := part.MultipartReader(); nested != nil {
			if len(stack) >= maxPartDepth {
				if log != nil {
					log.Warn("multipart nesting too deep; skipping subtree")
				}
				continue
			}
			stack = append(stack, nested)
			continue
		}
		collectLeaf(part, parsed, log)
	}
}

// collectLeaf classifies one leaf part as attachment or body content.
func collectLeaf(part *message.Entity, parsed *ParsedEmail, log *logrus.Logger) {
	contentType, ctParams, _ := part.Header.ContentType()
	disposition, dispParams, _ := part.Header.ContentDisposition()

	isText := contentType == "text/plain" || contentType == "text/html"
	if disposition == "attachment" || (disposition == "inline" && !isText) {
		content, err := io.ReadAll(part.Body)
		if err != nil {
			if log != nil {
				log.WithError(err).Warn("failed to extract attachment")
			}
			return
		}
		filename := dispParams["filename"]
		if filename == "" {
			filename = ctParams["name"]
		}
		if filename == "" {
			filename = fmt.Sprintf("attachment_%d", len(parsed.Attachments))
		}
		parsed.Attachments = append(parsed.Attachments, Attachment{
			Filename:    SanitizeFilename(filename, 200),
			ContentType: contentType,
			Content:     content,
			Size:        len(content),
			ContentID:   strings.Trim(part.Header.Get("Content-Id"), "<>"),
		})
		return
	}

	switch contentType {
	case "text/plain":
		if body, err := io.ReadAll(part.Body); err == nil {
			parsed.BodyText += string(body)
		}
	case "text/html":
		if body, err := io.ReadAll(part.Body); err == nil {
			parsed.BodyHTML += string(body)
		}
	default:
		// non-text leaf without a disposition: nothing to keep
	}
}

// extractInvoiceLinks scans text for likely document download URLs.
// Results are deduplicated in first-seen order so the output is stable
// for identical input.
func extractInvoiceLinks(text string) []string {
	seen := make(map[string]bool)
	var links []string
	add := func(url string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		links = append(links, url)
	}

	for _, pattern := range invoiceLinkPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			add(strings.TrimRight(match, ".,;:)>"))
		}
	}

	// Second pass: any URL whose text contains a document-ish keyword.
	for _, url := range anyURLPattern.FindAllString(text, -1) {
		lower := strings.ToLower(url)
		for _, kw := range invoiceKeywords {
			if strings.Contains(lower, kw) {
				add(strings.TrimRight(url, ".,;:)>"))
				break
			}
		}
	}

	return links
}

var illegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename makes a name safe for filesystem storage: illegal and
// control characters become underscores, the length is capped while keeping
// the extension, and leading/trailing dots and spaces are stripped.
func SanitizeFilename(name string, maxLen int) string {
	sanitized := illegalFilenameChars.ReplaceAllString(name, "_")

	if maxLen > 0 && len(sanitized) > maxLen {
		ext := ""
		if idx := strings.LastIndex(sanitized, "."); idx > 0 {
			ext = sanitized[idx:]
		}
		keep := maxLen - len(ext)
		if keep < 1 {
			keep = 1
			ext = ext[:maxLen-1]
		}
		sanitized = sanitized[:keep] + ext
	}

	sanitized = strings.Trim(sanitized, ". ")
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}
