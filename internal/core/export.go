package core

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportWorkbook builds an .xlsx workbook with one sheet per SheetResult, in
// order. Row 1 is the header; dates are written as DD-MM-YYYY text and the
// verified flag as Yes or No, so a re-uploaded export validates cleanly.
// The caller must Close the returned file.
func ExportWorkbook(sheets []SheetResult) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrInvalidExport)
	}
	seen := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate sheet name %q", ErrInvalidExport, s.Name)
		}
		seen[key] = true
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	defaultSheet := f.GetSheetName(0)
	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName(defaultSheet, s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrInvalidExport, s.Name, err)
		}

		if err := writeSheet(f, s, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("write sheet %q: %w", s.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook exports sheets and writes the workbook to w.
func WriteWorkbook(w io.Writer, sheets []SheetResult) error {
	f, err := ExportWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeSheet(f *excelize.File, s SheetResult, headerStyle int) error {
	header := make([]any, len(RequiredColumns))
	for i, c := range RequiredColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(s.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, rec := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{rec.Name, rec.Amount, FormatDate(rec), yesNo(rec.Verified)}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(s.Name, "A", "D", 16)
}

// FormatDate renders the record date as DD-MM-YYYY.
func FormatDate(r Record) string {
	return r.Date.In(time.UTC).Format(DateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
