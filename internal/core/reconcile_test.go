package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheetRecords(sheet string, recs ...Record) []SheetRecord {
	out := make([]SheetRecord, len(recs))
	for i, r := range recs {
		out[i] = SheetRecord{Sheet: sheet, Record: r}
	}
	return out
}

var (
	alice = Record{Name: "Alice", Amount: 100, Date: date(2024, time.January, 15), Verified: true}
	bob   = Record{Name: "Bob", Amount: 20, Date: date(2024, time.January, 16)}
	carol = Record{Name: "Carol", Amount: 3.5, Date: date(2024, time.February, 2), Verified: true}
)

func TestPersistRecords_ClearsAndDeduplicates(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx StoreTx) error {
		n, err := persistRecords(ctx, tx, sheetRecords("Old", carol))
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)

	var imported int
	err = store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		imported, err = persistRecords(ctx, tx, sheetRecords("Jan", alice, bob, alice))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, imported)
	stored, _ := store.ListRecords(ctx)
	require.Len(t, stored, 2)
	assert.Equal(t, alice, stored[0].Record)
	assert.Equal(t, "Jan", stored[0].Sheet)
	assert.NotEmpty(t, stored[0].ID)
	assert.NotEqual(t, stored[0].ID, stored[1].ID)
}

func TestPersistRecords_KeyIncludesVerified(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	unverified := alice
	unverified.Verified = false

	var imported int
	require.NoError(t, store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		imported, err = persistRecords(ctx, tx, sheetRecords("Jan", alice, unverified))
		return err
	}))
	assert.Equal(t, 2, imported)
}

func TestPersistRecords_FailureRollsBack(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx StoreTx) error {
		_, err := persistRecords(ctx, tx, sheetRecords("Old", carol))
		return err
	}))

	store.failInsertAfter = 1
	err := store.WithTx(ctx, func(tx StoreTx) error {
		_, err := persistRecords(ctx, tx, sheetRecords("Jan", alice, bob))
		return err
	})
	require.True(t, errors.Is(err, errInjected))

	stored, _ := store.ListRecords(ctx)
	require.Len(t, stored, 1, "previous contents survive a failed upload")
	assert.Equal(t, carol, stored[0].Record)
}

func TestReconcileRecords(t *testing.T) {
	tests := []struct {
		name        string
		snapshot    []SheetResult
		wantDeleted int64
		wantKept    []Record
	}{
		{
			name:        "removes the row missing from the snapshot",
			snapshot:    []SheetResult{{Name: "Jan", Rows: []Record{alice, carol}}},
			wantDeleted: 1,
			wantKept:    []Record{alice, carol},
		},
		{
			name: "sheet names do not matter",
			snapshot: []SheetResult{
				{Name: "Other", Rows: []Record{bob}},
				{Name: "Jan", Rows: []Record{alice, carol}},
			},
			wantDeleted: 0,
			wantKept:    []Record{alice, bob, carol},
		},
		{
			name:        "changed verified flag is a different row",
			snapshot:    []SheetResult{{Name: "Jan", Rows: []Record{{Name: "Alice", Amount: 100, Date: alice.Date}, bob, carol}}},
			wantDeleted: 1,
			wantKept:    []Record{bob, carol},
		},
		{
			name:        "empty sheets delete everything",
			snapshot:    []SheetResult{{Name: "Jan", Rows: []Record{}}},
			wantDeleted: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			ctx := context.Background()
			require.NoError(t, store.WithTx(ctx, func(tx StoreTx) error {
				_, err := persistRecords(ctx, tx, sheetRecords("Jan", alice, bob, carol))
				return err
			}))

			var deleted int64
			require.NoError(t, store.WithTx(ctx, func(tx StoreTx) error {
				var err error
				deleted, err = reconcileRecords(ctx, tx, tt.snapshot)
				return err
			}))

			assert.Equal(t, tt.wantDeleted, deleted)
			stored, _ := store.ListRecords(ctx)
			var kept []Record
			for _, s := range stored {
				kept = append(kept, s.Record)
			}
			assert.Equal(t, tt.wantKept, kept)
		})
	}
}

func TestStaleRecordIDs(t *testing.T) {
	stored := []StoredRecord{
		{ID: "1", Record: alice},
		{ID: "2", Record: bob},
		{ID: "3", Record: alice},
	}
	keep := SnapshotKeys([]SheetResult{{Name: "x", Rows: []Record{alice}}})

	assert.Equal(t, []string{"2"}, StaleRecordIDs(stored, keep))
}
