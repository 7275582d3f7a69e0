package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// XLSXExtractor flattens every sheet into tab-separated rows.
type XLSXExtractor struct {
	log *logrus.Logger
}

// NewXLSXExtractor creates an XLSX extractor.
func NewXLSXExtractor(log *logrus.Logger) *XLSXExtractor {
	return &XLSXExtractor{log: log}
}

// ExtractText renders all sheets as text. Each sheet is introduced with a
// header line so sheet boundaries survive the flattening; empty rows are
// dropped.
func (e *XLSXExtractor) ExtractText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		parts = append(parts, fmt.Sprintf("--- Sheet: %s ---", sheet))
		rows, err := f.GetRows(sheet)
		if err != nil {
			e.log.WithError(err).WithField("sheet", sheet).Warn("failed to read sheet")
			continue
		}
		for _, row := range rows {
			rowText := strings.Join(row, "\t")
			if strings.TrimSpace(rowText) != "" {
				parts = append(parts, rowText)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Metadata returns the workbook document properties.
func (e *XLSXExtractor) Metadata(path string) (map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta := map[string]string{
		"sheet_count": strconv.Itoa(len(f.GetSheetList())),
		"sheet_names": strings.Join(f.GetSheetList(), ", "),
	}
	if props, err := f.GetDocProps(); err == nil && props != nil {
		meta["title"] = props.Title
		meta["creator"] = props.Creator
		meta["created"] = props.Created
		meta["modified"] = props.Modified
	}
	return meta, nil
}

// PageCount returns the sheet count.
func (e *XLSXExtractor) PageCount(path string) (int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return 1, err
	}
	defer f.Close()
	return len(f.GetSheetList()), nil
}
