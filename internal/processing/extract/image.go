package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/sirupsen/logrus"
)

// ImageExtractor OCRs standalone image attachments.
type ImageExtractor struct {
	ocr OCREngine
	log *logrus.Logger
}

// NewImageExtractor creates an image extractor.
func NewImageExtractor(ocr OCREngine, log *logrus.Logger) *ImageExtractor {
	return &ImageExtractor{ocr: ocr, log: log}
}

// ExtractText OCRs the image when the engine is enabled. Recognized text
// is prefixed with a dimension/format line so downstream classification
// sees the image shape even when OCR finds nothing.
func (e *ImageExtractor) ExtractText(path string) (string, error) {
	if e.ocr == nil || !e.ocr.Enabled() {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	header := ""
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		header = fmt.Sprintf("[image %dx%d %s]\n", cfg.Width, cfg.Height, format)
	}

	text, err := e.ocr.ImageText(data)
	if err != nil {
		return "", err
	}
	return header + text, nil
}

// Metadata returns the image dimensions and format.
func (e *ImageExtractor) Metadata(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return map[string]string{}, nil
	}
	return map[string]string{
		"width":  fmt.Sprintf("%d", cfg.Width),
		"height": fmt.Sprintf("%d", cfg.Height),
		"format": format,
	}, nil
}

// PageCount is fixed at 1 for images.
func (e *ImageExtractor) PageCount(path string) (int, error) {
	return 1, nil
}
