// Package core provides the business logic for workbook upload, validation,
// persistence and reconciliation.
//
// It has no knowledge of HTTP. The web handlers and the sheetimport CLI both
// call into it.
//
// # Upload
//
// [Service.Upload] accepts one .xlsx workbook. Every sheet must carry the
// headers Name, Amount, Date and Verified in row 1, in any order. For each
// data row:
//
//  1. Cells are classified by the workbook reader ([CellValue]).
//  2. Column coercers narrow them ([CoerceRow]).
//  3. [ValidateRow] yields a [Record] or exactly one [ValidationError].
//
// Valid rows then replace the store contents in one transaction. Rows whose
// equality key ([Record.Key]) is already stored are skipped, so uploading the
// same workbook twice leaves the same store.
//
// # Reconcile
//
// The client edits the preview and submits the remaining rows.
// [Service.Reconcile] deletes every stored record whose key is absent from
// that snapshot. It never inserts.
//
// # Export
//
// [ExportWorkbook] writes sheets back to .xlsx in the same header layout,
// with dates as DD-MM-YYYY and the verified flag as Yes or No.
//
// # Storage
//
// Persistence goes through the [Store] interface. Implementations live in
// internal/store/postgres and internal/store/sqlite.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Row validation messages are returned verbatim and are not errors.
package core
