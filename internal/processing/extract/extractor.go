// Package extract turns stored files into text and metadata. Extraction is
// dispatched through a registry keyed by file type; adding a format means
// registering an Extractor, not editing a dispatcher.
package extract

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LeviWoodfall/Regia/internal/config"
)

// FileType is the processable document class.
type FileType string

const (
	TypePDF   FileType = "pdf"
	TypeDOCX  FileType = "docx"
	TypeXLSX  FileType = "xlsx"
	TypeImage FileType = "image"
)

// Extractor pulls text, metadata and a page/sheet count out of one stored
// file. Implementations read the filesystem only; an empty result with a
// nil error means "nothing extractable", not a failure.
type Extractor interface {
	ExtractText(path string) (string, error)
	Metadata(path string) (map[string]string, error)
	PageCount(path string) (int, error)
}

// Registry maps file types to extractors.
type Registry struct {
	extractors map[FileType]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[FileType]Extractor)}
}

// Register binds an extractor to a file type, replacing any previous one.
func (r *Registry) Register(t FileType, e Extractor) {
	r.extractors[t] = e
}

// Lookup returns the extractor for a file type.
func (r *Registry) Lookup(t FileType) (Extractor, bool) {
	e, ok := r.extractors[t]
	return e, ok
}

// DefaultRegistry wires the built-in extractors with a shared OCR engine.
func DefaultRegistry(cfg config.OCRConfig, log *logrus.Logger) *Registry {
	ocr := NewTesseractEngine(cfg, log)
	r := NewRegistry()
	r.Register(TypePDF, NewPDFExtractor(ocr, cfg.DPI, log))
	r.Register(TypeDOCX, NewDOCXExtractor(log))
	r.Register(TypeXLSX, NewXLSXExtractor(log))
	r.Register(TypeImage, NewImageExtractor(ocr, log))
	return r
}

var mimeTypes = map[string]FileType{
	"application/pdf": TypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": TypeDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       TypeXLSX,
	"application/vnd.ms-excel":                                                TypeXLSX,
	"image/jpeg":                                                              TypeImage,
	"image/png":                                                               TypeImage,
	"image/tiff":                                                              TypeImage,
	"image/bmp":                                                               TypeImage,
	"image/gif":                                                               TypeImage,
	"image/webp":                                                              TypeImage,
}

var extensions = map[string]FileType{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".doc":  TypeDOCX,
	".xlsx": TypeXLSX,
	".xls":  TypeXLSX,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".png":  TypeImage,
	".tiff": TypeImage,
	".tif":  TypeImage,
	".bmp":  TypeImage,
	".gif":  TypeImage,
	".webp": TypeImage,
}

// DetectFileType maps a filename and MIME type to a processable type.
// The MIME type wins when recognized; the extension is the fallback.
// Unknown types are not processable.
func DetectFileType(filename, contentType string) (FileType, bool) {
	if contentType != "" {
		if t, ok := mimeTypes[contentType]; ok {
			return t, true
		}
	}
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		if t, ok := extensions[strings.ToLower(filename[idx:])]; ok {
			return t, true
		}
	}
	return "", false
}
