package processing

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviWoodfall/Regia/internal/config"
)

func newTestDownloader(maxSizeMB int) *HTTPDownloader {
	return NewHTTPDownloader(config.DownloadConfig{
		Enabled:        true,
		MaxSizeMB:      maxSizeMB,
		TimeoutSeconds: 5,
		MaxRedirects:   5,
	}, testLogger())
}

func TestHTTPDownloader_FetchPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\nfake invoice body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}))
	defer server.Close()

	download, err := newTestDownloader(1).Fetch(server.URL + "/invoices/march.pdf")
	require.NoError(t, err)
	assert.Equal(t, "march.pdf", download.Filename)
	assert.Equal(t, "application/pdf", download.ContentType)
	assert.Equal(t, pdf, download.Content)
}

func TestHTTPDownloader_MagicBytesWithoutContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("%PDF-1.7\ncontent"))
	}))
	defer server.Close()

	download, err := newTestDownloader(1).Fetch(server.URL + "/get/abc123")
	require.NoError(t, err)
	// No usable name anywhere: generic default, already .pdf suffixed.
	assert.Equal(t, "downloaded_invoice.pdf", download.Filename)
	assert.Equal(t, "application/pdf", download.ContentType)
}

func TestHTTPDownloader_ContentDispositionFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="statement march.pdf"`)
		w.Write([]byte("%PDF-1.4\n"))
	}))
	defer server.Close()

	download, err := newTestDownloader(1).Fetch(server.URL)
	require.NoError(t, err)
	assert.Equal(t, "statement march.pdf", download.Filename)
}

func TestHTTPDownloader_RejectsNonPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a document</html>"))
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/page")
	assert.ErrorIs(t, err, ErrNotPDF)
}

// A .pdf URL serving HTML must still be rejected: the filename is not
// evidence of content.
func TestHTTPDownloader_RejectsHTMLAtPDFURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login required</html>"))
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/invoice.pdf")
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestHTTPDownloader_RejectsOversizedBody(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 2*1024*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(append([]byte("%PDF-1.4\n"), big...))
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/huge.pdf")
	assert.ErrorIs(t, err, ErrDownloadTooLarge)
}

func TestHTTPDownloader_RejectsDeclaredOversize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "209715200")
			return
		}
		t.Error("GET issued despite oversized HEAD declaration")
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/huge.pdf")
	assert.ErrorIs(t, err, ErrDownloadTooLarge)
}

func TestHTTPDownloader_RedirectCap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/loop")
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestHTTPDownloader_FollowsRedirectForFilename(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/final/receipt.pdf", http.StatusFound)
	})
	mux.HandleFunc("/final/receipt.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4\n"))
	})

	download, err := newTestDownloader(1).Fetch(server.URL + "/start")
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", download.Filename)
}

func TestHTTPDownloader_UnsupportedScheme(t *testing.T) {
	d := newTestDownloader(1)

	_, err := d.Fetch("ftp://example.com/invoice.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = d.Fetch("not a url at all")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestHTTPDownloader_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestDownloader(1).Fetch(server.URL + "/gone.pdf")
	assert.ErrorIs(t, err, ErrDownloadFailed)
}
