package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"no file", ErrNoFile, "FILE004"},
		{"empty file", ErrEmptyFile, "FILE005"},
		{"too large", fmt.Errorf("%w: 3 MiB exceeds limit", ErrFileTooLarge), "FILE001"},
		{"not xlsx", ErrNotXLSX, "FILE002"},
		{"unreadable workbook", fmt.Errorf("%w: zip: not a valid zip file", ErrInvalidWorkbook), "FILE003"},
		{"empty snapshot", ErrEmptySnapshot, "IMP001"},
		{"bad snapshot", fmt.Errorf("%w: unexpected EOF", ErrInvalidSnapshot), "IMP002"},
		{"bad export", ErrInvalidExport, "EXP001"},
		{"limiter exhausted", ErrTooManyUploads, "UPL002"},
		{"draining", ErrUploadsDraining, "UPL003"},
		{"deadline", fmt.Errorf("upload: %w", errDeadline), "UPL005"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB004"},
		{"serialization failure", errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"), "DB008"},
		{"sqlite busy", errors.New("database is locked"), "DB008"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
		{"case insensitive matching", errors.New("INVALID WORKBOOK"), "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

var errDeadline = errors.New("context deadline exceeded")

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrNoFile)
	want := "No file was uploaded (Code: FILE004). Please select an .xlsx file to upload"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error should not be user facing")
	}
	if !IsUserFacing(ErrEmptySnapshot) {
		t.Error("ErrEmptySnapshot should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	techErr := fmt.Errorf("%w: zip: not a valid zip file", ErrInvalidWorkbook)
	userErr := NewUserError(techErr)

	if userErr.Error() != "The file could not be read as a workbook" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrInvalidWorkbook) {
		t.Error("Unwrap() should expose the original error")
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(fmt.Errorf("upload: %w", ErrNotXLSX)) {
		t.Error("wrapped ErrNotXLSX should be a client error")
	}
	if IsClientError(errors.New("connection refused")) {
		t.Error("store failures are not client errors")
	}
}
