package models

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gemcertify/certify_backend/config"
	"github.com/gemcertify/certify_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ImportSummary reports the outcome of a bulk spreadsheet import.
type ImportSummary struct {
	Imported          int    `json:"imported"`
	FirstReportNumber string `json:"first_report_number"`
	LastReportNumber  string `json:"last_report_number"`
}

var (
	ErrEmptySheet       = errors.New("spreadsheet has no data rows")
	ErrMissingHeaderRow = errors.New("spreadsheet has no header row")
)

// ImportReportsFromExcel bulk-creates reports from an .xlsx upload.
// Row 1 of the first sheet names the attribute keys; every following
// non-empty row becomes one record. Report numbers come from one base read
// at import start followed by a local counter, so K rows receive K
// consecutive numbers; the whole allocate+insert run holds the category's
// allocation lock.
func ImportReportsFromExcel(ctx context.Context, category ReportCategory, file io.Reader) (*ImportSummary, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrMissingHeaderRow
	}

	headers := make([]string, 0, len(rows[0]))
	for _, h := range rows[0] {
		headers = append(headers, strings.TrimSpace(h))
	}

	attributeSets := make([]ReportAttributes, 0, len(rows)-1)
	for _, row := range rows[1:] {
		attributes := ReportAttributes{}
		empty := true
		for i, cell := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			attributes[headers[i]] = value
			empty = false
		}
		if empty {
			continue
		}
		attributeSets = append(attributeSets, attributes)
	}
	if len(attributeSets) == 0 {
		return nil, ErrEmptySheet
	}

	db := config.GetDB()
	var summary ImportSummary

	err = WithReportNumberLock(ctx, category, 30*time.Second, func() error {
		numbers, err := AllocateReportNumbers(ctx, category, len(attributeSets))
		if err != nil {
			return err
		}

		records := make([]Report, 0, len(attributeSets))
		for i, attributes := range attributeSets {
			records = append(records, Report{
				ReportNumber: numbers[i],
				Attributes:   attributes,
			})
		}

		if err := db.WithContext(ctx).Table(category.TableName()).Create(&records).Error; err != nil {
			if utils.IsDuplicateKeyError(err) {
				return ErrDuplicateReportNumber
			}
			return err
		}

		summary = ImportSummary{
			Imported:          len(records),
			FirstReportNumber: numbers[0],
			LastReportNumber:  numbers[len(numbers)-1],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
