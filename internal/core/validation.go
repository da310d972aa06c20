package core

// validation.go classifies a coerced row as a Record or a ValidationError.
//
// The checks form an ordered chain and the first failing check is the only
// one reported. A row with a bad date and a missing name reports the date;
// a row with a zero amount reports missing fields, not a non-positive amount.
// Keep the order stable: clients match on these messages.

import (
	"fmt"
)

// Row validation and schema messages returned to clients.
const (
	MsgMissingColumns = "Missing required columns"
	MsgMissingFields  = "Missing required fields"
	MsgAmountPositive = "Amount must be a positive number"
)

// invalidDateMessage quotes the original cell text.
func invalidDateMessage(original string) string {
	return fmt.Sprintf("Invalid date format: \"%s\". Expected DD-MM-YYYY.", original)
}

// ValidateRow returns a Record for a valid row, or exactly one error.
// rowNumber is the 1-based worksheet row. ValidateRow has no side effects.
func ValidateRow(sheet string, rowNumber int, row CoercedRow) (Record, *ValidationError) {
	reject := func(msg string) (Record, *ValidationError) {
		return Record{}, &ValidationError{Sheet: sheet, Row: rowNumber, Message: msg}
	}

	if row.Date.Kind == CellUnparseable {
		return reject(invalidDateMessage(row.Date.Raw))
	}

	if !row.Name.truthy() || !row.Amount.truthy() || row.Date.Kind != CellDate {
		return reject(MsgMissingFields)
	}

	amount, ok := row.Amount.AsNumber()
	if !ok || !isPositiveAmount(amount) {
		return reject(MsgAmountPositive)
	}

	return Record{
		Name:     row.Name.Raw,
		Amount:   amount,
		Date:     row.Date.Date,
		Verified: row.Verified,
	}, nil
}
