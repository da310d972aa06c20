package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"
)

// memStore is an in-memory Store. WithTx works on a copy and swaps it in on
// success, so a failing transaction leaves the store untouched.
type memStore struct {
	mu      sync.Mutex
	records []StoredRecord
	audit   []AuditEntry

	// failInsertAfter makes Insert fail once this many rows were inserted
	// in the current transaction. Negative disables it.
	failInsertAfter int
}

func newMemStore() *memStore {
	return &memStore{failInsertAfter: -1}
}

var errInjected = errors.New("injected insert failure")

type memTx struct {
	s        *memStore
	records  []StoredRecord
	audit    []AuditEntry
	inserted int
}

func (m *memStore) WithTx(ctx context.Context, fn func(StoreTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		s:       m,
		records: append([]StoredRecord(nil), m.records...),
		audit:   append([]AuditEntry(nil), m.audit...),
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.records, m.audit = tx.records, tx.audit
	return nil
}

func (m *memStore) ListRecords(ctx context.Context) ([]StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoredRecord(nil), m.records...), nil
}

func (m *memStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, 0, len(m.audit))
	for i := len(m.audit) - 1; i >= 0; i-- {
		out = append(out, m.audit[i])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

func (tx *memTx) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(tx.records))
	tx.records = nil
	return n, nil
}

func (tx *memTx) Exists(ctx context.Context, r Record) (bool, error) {
	for _, s := range tx.records {
		if s.Key() == r.Key() {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) Insert(ctx context.Context, r StoredRecord) error {
	if tx.s.failInsertAfter >= 0 && tx.inserted >= tx.s.failInsertAfter {
		return errInjected
	}
	tx.records = append(tx.records, r)
	tx.inserted++
	return nil
}

func (tx *memTx) ListRecords(ctx context.Context) ([]StoredRecord, error) {
	return append([]StoredRecord(nil), tx.records...), nil
}

func (tx *memTx) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := tx.records[:0:0]
	var n int64
	for _, r := range tx.records {
		if drop[r.ID] {
			n++
			continue
		}
		kept = append(kept, r)
	}
	tx.records = kept
	return n, nil
}

func (tx *memTx) InsertAudit(ctx context.Context, e AuditEntry) error {
	tx.audit = append(tx.audit, e)
	return nil
}

// testSheet describes one worksheet for buildWorkbook. time.Time values are
// written as date serials with a built-in date format.
type testSheet struct {
	name string
	rows [][]any
}

func buildWorkbook(t *testing.T, sheets ...testSheet) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("NewStyle: %v", err)
	}

	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err != nil {
			t.Fatalf("create sheet %q: %v", s.name, err)
		}

		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(s.name, cell, v); err != nil {
					t.Fatalf("set %s!%s: %v", s.name, cell, err)
				}
				if _, ok := v.(time.Time); ok {
					if err := f.SetCellStyle(s.name, cell, cell, dateStyle); err != nil {
						t.Fatalf("style %s!%s: %v", s.name, cell, err)
					}
				}
			}
		}
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func workbookBytes(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := buildWorkbook(t, sheets...).Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

var headerRow = []any{"Name", "Amount", "Date", "Verified"}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}
