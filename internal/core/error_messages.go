// Error Codes Reference
//
// Errors returned to clients carry a short code that support staff can look
// up here. Row validation messages are not coded; they are returned verbatim
// in the upload response.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The workbook exceeds the upload size limit
//	          Patterns: "file too large"
//	FILE002 - Unsupported type: Only .xlsx workbooks are accepted
//	          Patterns: "unsupported file type"
//	FILE003 - Invalid workbook: The file could not be read as a workbook
//	          Patterns: "invalid workbook"
//	FILE004 - No file: No file was uploaded
//	          Patterns: "no file uploaded"
//	FILE005 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//
// # Import and Export Errors (IMP001-IMP099, EXP001-EXP099)
//
//	IMP001 - No data: The import request carried no sheets
//	         Patterns: "no data to import"
//	IMP002 - Invalid snapshot: The import body could not be decoded
//	         Patterns: "invalid snapshot"
//	EXP001 - Invalid export: Sheet names are duplicated or not allowed
//	         Patterns: "invalid export request"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Another upload is in progress
//	         Patterns: "too many concurrent uploads"
//	UPL003 - Server shutting down
//	         Patterns: "uploads are draining"
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//	DB008 - Conflicting update: another upload or import changed the data
//	        Patterns: "could not serialize", "database is locked"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns must come before general ones.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{"file too large", UserMessage{
		Message: "The workbook exceeds the upload size limit",
		Action:  "Split the workbook or remove unused sheets",
		Code:    "FILE001",
	}},
	{"unsupported file type", UserMessage{
		Message: "Only .xlsx workbooks are accepted",
		Action:  "Save the file as an Excel workbook (.xlsx) and try again",
		Code:    "FILE002",
	}},
	{"invalid workbook", UserMessage{
		Message: "The file could not be read as a workbook",
		Action:  "Open the file in Excel, save it again as .xlsx and retry",
		Code:    "FILE003",
	}},
	{"no file uploaded", UserMessage{
		Message: "No file was uploaded",
		Action:  "Please select an .xlsx file to upload",
		Code:    "FILE004",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a workbook with data rows",
		Code:    "FILE005",
	}},

	// Import and export
	{"no data to import", UserMessage{
		Message: "No data to import",
		Action:  "Upload a workbook before submitting changes",
		Code:    "IMP001",
	}},
	{"invalid snapshot", UserMessage{
		Message: "The submitted data could not be read",
		Action:  "Reload the preview and submit again",
		Code:    "IMP002",
	}},
	{"invalid export request", UserMessage{
		Message: "The sheets could not be exported",
		Action:  "Use unique sheet names of at most 31 characters without : \\ / ? * [ ]",
		Code:    "EXP001",
	}},

	// Upload flow
	{"too many concurrent uploads", UserMessage{
		Message: "Another upload is being processed",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{"uploads are draining", UserMessage{
		Message: "The server is restarting",
		Action:  "Please try again in a minute",
		Code:    "UPL003",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller workbook or check your connection",
		Code:    "UPL005",
	}},

	// Database
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"could not serialize", UserMessage{
		Message: "The data was changed by another request",
		Action:  "Reload and try again",
		Code:    "DB008",
	}},
	{"database is locked", UserMessage{
		Message: "The data was changed by another request",
		Action:  "Reload and try again",
		Code:    "DB008",
	}},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message. Error
// returns the user message; Unwrap returns the technical error for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
