package extract

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/sirupsen/logrus"
)

// paragraphsPerPage is the rough estimate used for DOCX page counts,
// since the format stores no pagination.
const paragraphsPerPage = 25

// DOCXExtractor pulls paragraph and table-cell text out of DOCX files.
type DOCXExtractor struct {
	log *logrus.Logger
}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor(log *logrus.Logger) *DOCXExtractor {
	return &DOCXExtractor{log: log}
}

func (e *DOCXExtractor) open(path string) (*docx.Docx, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return docx.Parse(f, info.Size())
}

// ExtractText concatenates non-empty paragraphs and table content in
// document order.
func (e *DOCXExtractor) ExtractText(path string) (string, error) {
	doc, err := e.open(path)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			text := strings.TrimSpace(fmt.Sprint(item))
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Metadata reports structural counts; DOCX core properties are not
// exposed by the parser.
func (e *DOCXExtractor) Metadata(path string) (map[string]string, error) {
	doc, err := e.open(path)
	if err != nil {
		return nil, err
	}

	paragraphs, tables := 0, 0
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph:
			paragraphs++
		case *docx.Table:
			tables++
		}
	}
	return map[string]string{
		"paragraphs": strconv.Itoa(paragraphs),
		"tables":     strconv.Itoa(tables),
	}, nil
}

// PageCount estimates pages from the non-empty paragraph count.
func (e *DOCXExtractor) PageCount(path string) (int, error) {
	doc, err := e.open(path)
	if err != nil {
		return 1, err
	}

	count := 0
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			if strings.TrimSpace(fmt.Sprint(p)) != "" {
				count++
			}
		}
	}
	pages := count/paragraphsPerPage + 1
	if pages < 1 {
		pages = 1
	}
	return pages, nil
}
