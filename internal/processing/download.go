package processing

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/config"
	"github.com/LeviWoodfall/Regia/internal/mailbox"
)

var (
	// ErrDownloadFailed indicates the HTTP fetch failed
	ErrDownloadFailed = errors.New("download failed")
	// ErrDownloadTooLarge indicates the file exceeds the size cap
	ErrDownloadTooLarge = errors.New("download exceeds size limit")
	// ErrNotPDF indicates the downloaded content is not verifiably a PDF
	ErrNotPDF = errors.New("download is not a PDF")
	// ErrUnsupportedScheme indicates a non-HTTP URL
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// Download is one fetched document.
type Download struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Downloader fetches invoice-link documents. Only verifiably-PDF content
// is returned; everything else is an error the caller records and skips.
type Downloader interface {
	Fetch(rawURL string) (*Download, error)
}

// HTTPDownloader is the bounded net/http Downloader: request timeout,
// redirect cap, and byte-size cap, with a HEAD probe to reject oversized
// files before transfer.
type HTTPDownloader struct {
	client  *http.Client
	maxSize int64
	log     *logrus.Logger
}

// NewHTTPDownloader creates a downloader from download configuration.
func NewHTTPDownloader(cfg config.DownloadConfig, log *logrus.Logger) *HTTPDownloader {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxSize <= 0 {
		maxSize = 100 * 1024 * 1024
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		maxSize: maxSize,
		log:     log,
	}
}

// Fetch downloads one URL. The declared content-length is checked first so
// an oversized file aborts before any transfer; the body read is capped
// regardless in case the declaration lied.
func (d *HTTPDownloader) Fetch(rawURL string) (*Download, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}

	// HEAD is a cheap pre-check; servers that reject it still get the GET.
	if resp, err := d.client.Head(rawURL); err == nil {
		resp.Body.Close()
		if resp.ContentLength > d.maxSize {
			return nil, fmt.Errorf("%w: declared %d bytes", ErrDownloadTooLarge, resp.ContentLength)
		}
	}

	resp, err := d.client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if int64(len(content)) > d.maxSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrDownloadTooLarge, d.maxSize)
	}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	filename := extractFilename(resp)

	// The filename never counts as evidence; only the declared type or
	// the magic bytes do.
	isPDF := contentType == "application/pdf" ||
		(len(content) >= 5 && string(content[:5]) == "%PDF-")
	if !isPDF {
		return nil, fmt.Errorf("%w: content-type %q", ErrNotPDF, contentType)
	}

	if filename == "" {
		filename = "downloaded_invoice"
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		filename += ".pdf"
	}

	d.log.WithFields(logrus.Fields{
		"url":  rawURL,
		"file": filename,
		"size": len(content),
	}).Info("downloaded invoice link")

	return &Download{
		Filename:    filename,
		Content:     content,
		ContentType: "application/pdf",
	}, nil
}

// extractFilename resolves a name from the Content-Disposition header, then
// the final (post-redirect) URL path. Empty means no usable name; the
// caller must not let a default name influence PDF verification.
func extractFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return mailbox.SanitizeFilename(name, 200)
			}
		}
	}

	if resp.Request != nil && resp.Request.URL != nil {
		base := path.Base(resp.Request.URL.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if base != "" && base != "/" && base != "." && strings.Contains(base, ".") {
			return mailbox.SanitizeFilename(base, 200)
		}
	}

	return ""
}
