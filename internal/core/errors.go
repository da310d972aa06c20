package core

import "errors"

// Request-level errors. Their text is matched by MapError, so keep the
// wording in sync with errorPatterns.
var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrEmptyFile       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNotXLSX         = errors.New("unsupported file type: only .xlsx workbooks are accepted")
	ErrInvalidWorkbook = errors.New("invalid workbook")
	ErrEmptySnapshot   = errors.New("no data to import")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidExport   = errors.New("invalid export request")
)

// IsClientError reports whether err was caused by the request rather than
// by the server or the store.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNoFile, ErrEmptyFile, ErrFileTooLarge, ErrNotXLSX, ErrInvalidWorkbook,
		ErrEmptySnapshot, ErrInvalidSnapshot, ErrInvalidExport,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
