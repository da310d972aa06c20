package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// RequiredColumns is the fixed header set every sheet must carry.
// Matching is case-sensitive and order-independent; extra columns are ignored.
var RequiredColumns = []string{ColName, ColAmount, ColDate, ColVerified}

// Header labels of the fixed schema.
const (
	ColName     = "Name"
	ColAmount   = "Amount"
	ColDate     = "Date"
	ColVerified = "Verified"
)

// DateLayout is the textual date format accepted in Date cells and written on export.
const DateLayout = "02-01-2006"

// Record is a validated row of the fixed schema.
// A Record only exists when all four fields are present and valid.
type Record struct {
	Name     string     `json:"name"`
	Amount   float64    `json:"amount"`
	Date     civil.Date `json:"date"`
	Verified bool       `json:"verified"`
}

// EqualityKey identifies records that represent the same row.
// Identity of persisted rows is never part of the key.
type EqualityKey struct {
	Name     string
	Amount   float64
	Date     string // ISO 8601 calendar date
	Verified bool
}

// Key returns the record's equality key.
func (r Record) Key() EqualityKey {
	return EqualityKey{
		Name:     r.Name,
		Amount:   r.Amount,
		Date:     r.Date.String(),
		Verified: r.Verified,
	}
}

// UnmarshalJSON accepts dates either as calendar dates ("2024-01-15") or as
// RFC 3339 timestamps ("2024-01-15T00:00:00.000Z"), which is what browser
// clients produce when they round-trip a Date object.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name     string   `json:"name"`
		Amount   *float64 `json:"amount"`
		Date     string   `json:"date"`
		Verified bool     `json:"verified"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Amount == nil {
		return fmt.Errorf("record %q: missing amount", raw.Name)
	}
	d, err := parseISODate(raw.Date)
	if err != nil {
		return fmt.Errorf("record %q: %w", raw.Name, err)
	}
	*r = Record{Name: raw.Name, Amount: *raw.Amount, Date: d, Verified: raw.Verified}
	return nil
}

// parseISODate parses a calendar date or an RFC 3339 timestamp (taken in UTC).
func parseISODate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return civil.DateOf(t.UTC()), nil
}

// SheetResult holds the valid records of one sheet, in row order.
type SheetResult struct {
	Name string   `json:"name"`
	Rows []Record `json:"data"`
}

// ValidationError describes why a sheet or a row was rejected.
// Row is 1-based and zero for sheet-level errors.
type ValidationError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"error"`
}

func (e ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("sheet %q row %d: %s", e.Sheet, e.Row, e.Message)
	}
	return fmt.Sprintf("sheet %q: %s", e.Sheet, e.Message)
}

// SheetRecord is a valid record tagged with the sheet it came from.
type SheetRecord struct {
	Sheet  string
	Record Record
}

// StoredRecord is a persisted record with its system-assigned identity.
type StoredRecord struct {
	ID        string    `json:"id"`
	Sheet     string    `json:"sheet"`
	CreatedAt time.Time `json:"createdAt"`
	Record
}

// UnmarshalJSON decodes the identity fields alongside the embedded Record,
// whose own UnmarshalJSON would otherwise be promoted and drop them.
func (s *StoredRecord) UnmarshalJSON(b []byte) error {
	var meta struct {
		ID        string    `json:"id"`
		Sheet     string    `json:"sheet"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	*s = StoredRecord{ID: meta.ID, Sheet: meta.Sheet, CreatedAt: meta.CreatedAt, Record: rec}
	return nil
}

// isPositiveAmount reports whether v is a finite number greater than zero.
func isPositiveAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Store is the persisted record collection.
// Implementations live in internal/store.
type Store interface {
	// WithTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error

	// ListRecords returns every persisted record in insertion order.
	ListRecords(ctx context.Context) ([]StoredRecord, error)

	// ListAudit returns the most recent audit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// StoreTx is the set of operations available inside a store transaction.
type StoreTx interface {
	DeleteAll(ctx context.Context) (int64, error)
	Exists(ctx context.Context, r Record) (bool, error)
	Insert(ctx context.Context, r StoredRecord) error
	ListRecords(ctx context.Context) ([]StoredRecord, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	InsertAudit(ctx context.Context, e AuditEntry) error
}
