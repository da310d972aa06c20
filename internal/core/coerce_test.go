package core

import (
	"math"
	"testing"
	"time"
)

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		name     string
		in       CellValue
		wantKind CellKind
		wantDate string
		wantRaw  string
	}{
		{"empty stays empty", EmptyCell(), CellEmpty, "", ""},
		{"date cell passes through", DateCell(date(2024, time.January, 15)), CellDate, "2024-01-15", "2024-01-15"},
		{"dd-mm-yyyy text", TextCell("15-01-2024"), CellDate, "2024-01-15", "15-01-2024"},
		{"surrounding spaces", TextCell(" 15-01-2024 "), CellDate, "2024-01-15", " 15-01-2024 "},
		{"iso text rejected", TextCell("2024-01-15"), CellUnparseable, "", "2024-01-15"},
		{"slashes rejected", TextCell("15/01/2024"), CellUnparseable, "", "15/01/2024"},
		{"single digit day rejected", TextCell("5-01-2024"), CellUnparseable, "", "5-01-2024"},
		{"impossible day rejected", TextCell("31-02-2024"), CellUnparseable, "", "31-02-2024"},
		{"number rejected", NumberCell(45306), CellUnparseable, "", "45306"},
		{"boolean rejected", BoolCell(true), CellUnparseable, "", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceDate(tt.in)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantKind == CellDate && got.Date.String() != tt.wantDate {
				t.Errorf("date = %s, want %s", got.Date, tt.wantDate)
			}
			if got.Raw != tt.wantRaw {
				t.Errorf("raw = %q, want %q", got.Raw, tt.wantRaw)
			}
		})
	}
}

func TestCoerceVerified(t *testing.T) {
	tests := map[string]struct {
		in   CellValue
		want bool
	}{
		"Yes":        {TextCell("Yes"), true},
		"yes":        {TextCell("yes"), true},
		"padded YES": {TextCell("  YES "), true},
		"No":         {TextCell("No"), false},
		"y":          {TextCell("y"), false},
		"true text":  {TextCell("true"), false},
		"boolean":    {BoolCell(true), false},
		"number":     {NumberCell(1), false},
		"empty":      {EmptyCell(), false},
	}
	for name, tt := range tests {
		if got := CoerceVerified(tt.in); got != tt.want {
			t.Errorf("%s: CoerceVerified = %v, want %v", name, got, tt.want)
		}
	}
}

func TestCellValue_Truthy(t *testing.T) {
	tests := []struct {
		in   CellValue
		want bool
	}{
		{EmptyCell(), false},
		{TextCell(""), false},
		{TextCell("x"), true},
		{TextCell("0"), true},
		{NumberCell(0), false},
		{NumberCell(math.NaN()), false},
		{NumberCell(-1), true},
		{BoolCell(false), false},
		{BoolCell(true), true},
		{DateCell(date(2024, time.March, 1)), true},
	}
	for _, tt := range tests {
		if got := tt.in.truthy(); got != tt.want {
			t.Errorf("%v(%q).truthy() = %v, want %v", tt.in.Kind, tt.in.Raw, got, tt.want)
		}
	}
}

func TestCellValue_AsNumber(t *testing.T) {
	if n, ok := NumberCell(12.5).AsNumber(); !ok || n != 12.5 {
		t.Errorf("number cell: got %v, %v", n, ok)
	}
	if n, ok := TextCell(" 42 ").AsNumber(); !ok || n != 42 {
		t.Errorf("numeric text: got %v, %v", n, ok)
	}
	if _, ok := TextCell("abc").AsNumber(); ok {
		t.Error("non-numeric text should not be a number")
	}
	if _, ok := BoolCell(true).AsNumber(); ok {
		t.Error("boolean should not be a number")
	}
}

func TestCoerceRow_MissingColumnsReadEmpty(t *testing.T) {
	row := CoerceRow(map[string]CellValue{ColName: TextCell("Alice")})

	if row.Amount.Kind != CellEmpty || row.Date.Kind != CellEmpty {
		t.Errorf("absent cells should be empty, got amount=%v date=%v", row.Amount.Kind, row.Date.Kind)
	}
	if row.Verified {
		t.Error("absent Verified should coerce to false")
	}
}
