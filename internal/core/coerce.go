package core

// coerce.go turns loosely typed spreadsheet cells into tagged values.
//
// Cells arrive as text, numbers, booleans or dates depending on how the author
// typed them. Every cell is first classified into a CellValue by the workbook
// reader, then the column coercers below narrow it for the fixed schema.
// Coercion never fails: an unusable Date becomes CellUnparseable and the row
// validator reports it.

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// CellKind is the closed set of coerced cell outcomes.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
	CellBoolean
	CellUnparseable
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellBoolean:
		return "boolean"
	case CellUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// CellValue is a tagged spreadsheet cell. Raw always holds the text the
// cell was read as, so diagnostics can quote what the author typed.
type CellValue struct {
	Kind   CellKind
	Raw    string
	Number float64
	Bool   bool
	Date   civil.Date
}

// Constructors used by the workbook reader and tests.

func EmptyCell() CellValue { return CellValue{Kind: CellEmpty} }

func TextCell(s string) CellValue {
	if s == "" {
		return EmptyCell()
	}
	return CellValue{Kind: CellText, Raw: s}
}

func NumberCell(n float64) CellValue {
	return CellValue{Kind: CellNumber, Raw: strconv.FormatFloat(n, 'f', -1, 64), Number: n}
}

func BoolCell(b bool) CellValue {
	return CellValue{Kind: CellBoolean, Raw: strconv.FormatBool(b), Bool: b}
}

func DateCell(d civil.Date) CellValue {
	return CellValue{Kind: CellDate, Raw: d.String(), Date: d}
}

// truthy mirrors how the source data treats blank-ish values: empty cells,
// empty text, zero and NaN count as absent.
func (v CellValue) truthy() bool {
	switch v.Kind {
	case CellEmpty:
		return false
	case CellText, CellUnparseable:
		return v.Raw != ""
	case CellNumber:
		return v.Number != 0 && v.Number == v.Number
	case CellBoolean:
		return v.Bool
	default:
		return true
	}
}

// AsNumber returns the numeric value of a cell. Numeric text is accepted;
// ok is false for anything that is not a number.
func (v CellValue) AsNumber() (n float64, ok bool) {
	switch v.Kind {
	case CellNumber:
		return v.Number, true
	case CellText:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// CoerceName passes the Name cell through unchanged.
func CoerceName(v CellValue) CellValue { return v }

// CoerceAmount passes the Amount cell through unchanged. Non-numeric values
// are rejected by the row validator, not here.
func CoerceAmount(v CellValue) CellValue { return v }

// CoerceDate keeps date cells and parses text with DateLayout.
// Any other input becomes CellUnparseable carrying the original text.
func CoerceDate(v CellValue) CellValue {
	switch v.Kind {
	case CellEmpty, CellDate:
		return v
	case CellText:
		t, err := time.Parse(DateLayout, strings.TrimSpace(v.Raw))
		if err != nil {
			return CellValue{Kind: CellUnparseable, Raw: v.Raw}
		}
		return CellValue{Kind: CellDate, Raw: v.Raw, Date: civil.DateOf(t)}
	default:
		return CellValue{Kind: CellUnparseable, Raw: v.Raw}
	}
}

// CoerceVerified is true only when the cell text is "yes" after trimming
// and lower-casing. The mapping is lossy; the original text is not kept.
func CoerceVerified(v CellValue) bool {
	return strings.ToLower(strings.TrimSpace(v.Raw)) == "yes"
}

// CoercedRow is one data row after column coercion.
type CoercedRow struct {
	Name     CellValue
	Amount   CellValue
	Date     CellValue
	Verified bool
}

// CoerceRow applies the column coercers to a raw row keyed by header label.
// Missing columns read as empty cells.
func CoerceRow(cells map[string]CellValue) CoercedRow {
	return CoercedRow{
		Name:     CoerceName(cells[ColName]),
		Amount:   CoerceAmount(cells[ColAmount]),
		Date:     CoerceDate(cells[ColDate]),
		Verified: CoerceVerified(cells[ColVerified]),
	}
}
