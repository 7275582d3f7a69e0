package extract

import (
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/sirupsen/logrus"
)

// PDFExtractor reads the embedded text layer and falls back to OCR over
// rendered pages when the document has no text at all.
type PDFExtractor struct {
	ocr OCREngine
	dpi int
	log *logrus.Logger
}

// NewPDFExtractor creates a PDF extractor with the given OCR fallback.
func NewPDFExtractor(ocr OCREngine, dpi int, log *logrus.Logger) *PDFExtractor {
	if dpi <= 0 {
		dpi = 300
	}
	return &PDFExtractor{ocr: ocr, dpi: dpi, log: log}
}

// ExtractText returns the embedded text of all pages. When the whole
// document is empty or whitespace and OCR is enabled, pages are rendered
// and recognized instead. Per-page failures are logged and skipped.
func (e *PDFExtractor) ExtractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			e.log.WithError(err).WithField("page", i).Warn("PDF text extraction failed")
			continue
		}
		parts = append(parts, text)
	}

	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if e.ocr == nil || !e.ocr.Enabled() {
		return "", nil
	}

	var ocrParts []string
	for i := 0; i < doc.NumPage(); i++ {
		png, err := doc.ImagePNG(i, float64(e.dpi))
		if err != nil {
			e.log.WithError(err).WithField("page", i).Warn("PDF page render failed")
			continue
		}
		pageText, err := e.ocr.ImageText(png)
		if err != nil {
			e.log.WithError(err).WithField("page", i).Warn("OCR failed")
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			ocrParts = append(ocrParts, pageText)
		}
	}
	return strings.Join(ocrParts, "\n\n"), nil
}

// Metadata returns the document information dictionary.
func (e *PDFExtractor) Metadata(path string) (map[string]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.Metadata(), nil
}

// PageCount returns the number of pages.
func (e *PDFExtractor) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage renders one page as PNG for document previews. Page numbers
// out of range return nil.
func (e *PDFExtractor) RenderPage(path string, pageNumber int, dpi int) ([]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if pageNumber < 0 || pageNumber >= doc.NumPage() {
		return nil, nil
	}
	if dpi <= 0 {
		dpi = 150
	}
	return doc.ImagePNG(pageNumber, float64(dpi))
}
