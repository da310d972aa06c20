package core

// processor.go walks an .xlsx workbook sheet by sheet.
//
// Each sheet must carry the fixed header set in row 1. Sheets without it are
// reported once and skipped; the rest of the workbook is still processed.
// Data rows are coerced and validated one at a time and land either in the
// sheet's result or in the shared error list, never in neither.

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"
)

// ProcessResult is the outcome of processing one workbook.
type ProcessResult struct {
	Errors []ValidationError `json:"errors"`
	Sheets []SheetResult     `json:"sheets"`
}

// ValidRecords flattens the valid rows in sheet order, then row order.
func (p *ProcessResult) ValidRecords() []SheetRecord {
	var out []SheetRecord
	for _, sheet := range p.Sheets {
		for _, rec := range sheet.Rows {
			out = append(out, SheetRecord{Sheet: sheet.Name, Record: rec})
		}
	}
	return out
}

// OpenWorkbook reads an .xlsx workbook from r.
func OpenWorkbook(r io.Reader) (*excelize.File, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	return f, nil
}

// ProcessWorkbook validates every sheet of f in workbook order.
func ProcessWorkbook(f *excelize.File) (*ProcessResult, error) {
	wr := newWorkbookReader(f)
	result := &ProcessResult{
		Errors: []ValidationError{},
		Sheets: []SheetResult{},
	}

	for _, name := range f.GetSheetList() {
		if err := processSheet(wr, name, result); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}

	return result, nil
}

func processSheet(wr *workbookReader, sheet string, result *ProcessResult) error {
	rows, err := wr.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	columns, ok := locateColumns(header)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{Sheet: sheet, Message: MsgMissingColumns})
		return nil
	}

	sheetResult := SheetResult{Name: sheet, Rows: []Record{}}

	for i := 1; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			continue
		}
		rowNumber := i + 1

		cells := make(map[string]CellValue, len(columns))
		for label, col := range columns {
			raw := ""
			if col < len(rows[i]) {
				raw = rows[i][col]
			}
			cell, err := wr.cell(sheet, col, rowNumber, raw)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", rowNumber, label, err)
			}
			cells[label] = cell
		}

		rec, verr := ValidateRow(sheet, rowNumber, CoerceRow(cells))
		if verr != nil {
			result.Errors = append(result.Errors, *verr)
			continue
		}
		sheetResult.Rows = append(sheetResult.Rows, rec)
	}

	result.Sheets = append(result.Sheets, sheetResult)
	return nil
}

// locateColumns maps each required header label to its column index.
// The first occurrence of a label wins.
func locateColumns(header []string) (map[string]int, bool) {
	present := make(map[string]int, len(header))
	for i, label := range header {
		if _, seen := present[label]; !seen && label != "" {
			present[label] = i
		}
	}

	columns := make(map[string]int, len(RequiredColumns))
	for _, col := range RequiredColumns {
		idx, ok := present[col]
		if !ok {
			return nil, false
		}
		columns[col] = idx
	}
	return columns, true
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

// workbookReader classifies raw cell values using the cell type and number
// format stored in the workbook.
type workbookReader struct {
	f         *excelize.File
	date1904  bool
	dateStyle map[int]bool
}

func newWorkbookReader(f *excelize.File) *workbookReader {
	wr := &workbookReader{f: f, dateStyle: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wr.date1904 = *props.Date1904
	}
	return wr
}

// cell classifies one raw cell. row is 1-based, col is 0-based.
func (wr *workbookReader) cell(sheet string, col, row int, raw string) (CellValue, error) {
	if raw == "" {
		return EmptyCell(), nil
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return CellValue{}, err
	}
	typ, err := wr.f.GetCellType(sheet, axis)
	if err != nil {
		return CellValue{}, err
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return TextCell(raw), nil
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "TRUE")), nil
	case excelize.CellTypeDate:
		if d, ok := parseISOCellDate(raw); ok {
			return DateCell(d), nil
		}
		return TextCell(raw), nil
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return TextCell(raw), nil
	}
	if wr.isDateFormatted(sheet, axis) {
		t, err := excelize.ExcelDateToTime(n, wr.date1904)
		if err == nil {
			return DateCell(civil.DateOf(t)), nil
		}
	}
	return NumberCell(n), nil
}

// isDateFormatted reports whether the cell's number format renders a date.
func (wr *workbookReader) isDateFormatted(sheet, axis string) bool {
	styleID, err := wr.f.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := wr.dateStyle[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := wr.f.GetStyle(styleID); err == nil {
		if style.CustomNumFmt != nil {
			isDate = isDateNumFmt(*style.CustomNumFmt)
		} else {
			isDate = builtInDateNumFmts[style.NumFmt]
		}
	}
	wr.dateStyle[styleID] = isDate
	return isDate
}

// builtInDateNumFmts lists the built-in number format IDs that render dates.
var builtInDateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true,
	34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true,
	57: true, 58: true,
}

// isDateNumFmt detects a custom date format by looking for day or year
// tokens outside quoted literals and bracketed sections.
func isDateNumFmt(code string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

// parseISOCellDate parses the ISO 8601 value stored in a t="d" cell.
func parseISOCellDate(raw string) (civil.Date, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}
