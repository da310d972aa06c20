package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stored(name string, amount float64, verified bool) core.StoredRecord {
	return core.StoredRecord{
		ID:        uuid.NewString(),
		Sheet:     "Jan",
		CreatedAt: time.Date(2024, 1, 20, 9, 30, 0, 0, time.UTC),
		Record: core.Record{
			Name:     name,
			Amount:   amount,
			Date:     civil.Date{Year: 2024, Month: time.January, Day: 15},
			Verified: verified,
		},
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.NoError(t, s2.Ping(context.Background()))
}

func TestStore_InsertExistsList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := stored("Alice", 100, true)

	require.NoError(t, s.WithTx(ctx, func(tx core.StoreTx) error {
		if err := tx.Insert(ctx, alice); err != nil {
			return err
		}

		ok, err := tx.Exists(ctx, alice.Record)
		require.NoError(t, err)
		assert.True(t, ok)

		other := alice.Record
		other.Amount = 100.01
		ok, err = tx.Exists(ctx, other)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	got, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alice, got[0])
}

func TestStore_RollbackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx core.StoreTx) error {
		if err := tx.Insert(ctx, stored("Alice", 1, true)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DeleteAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx core.StoreTx) error {
		require.NoError(t, tx.Insert(ctx, stored("A", 1, true)))
		require.NoError(t, tx.Insert(ctx, stored("B", 2, true)))
		n, err := tx.DeleteAll(ctx)
		assert.Equal(t, int64(2), n)
		return err
	}))

	got, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DeleteByIDsChunked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const total = deleteChunk*2 + 7
	var ids []string
	require.NoError(t, s.WithTx(ctx, func(tx core.StoreTx) error {
		for i := 0; i < total; i++ {
			r := stored(fmt.Sprintf("row-%d", i), float64(i+1), i%2 == 0)
			if err := tx.Insert(ctx, r); err != nil {
				return err
			}
			if i > 0 {
				ids = append(ids, r.ID)
			}
		}
		return nil
	}))

	var deleted int64
	require.NoError(t, s.WithTx(ctx, func(tx core.StoreTx) error {
		var err error
		deleted, err = tx.DeleteByIDs(ctx, ids)
		return err
	}))
	assert.Equal(t, int64(total-1), deleted)

	got, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "row-0", got[0].Name)
}

func TestStore_Audit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, action := range []core.AuditAction{core.ActionUpload, core.ActionReconcile, core.ActionUpload} {
		e := core.AuditEntry{
			ID:           uuid.NewString(),
			Action:       action,
			FileName:     fmt.Sprintf("file-%d.xlsx", i),
			RowsAffected: int64(i),
			IPAddress:    "198.51.100.4",
			CreatedAt:    time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		}
		require.NoError(t, s.WithTx(ctx, func(tx core.StoreTx) error { return tx.InsertAudit(ctx, e) }))
	}

	got, err := s.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "file-2.xlsx", got[0].FileName)
	assert.Equal(t, core.ActionReconcile, got[1].Action)
	assert.Equal(t, "198.51.100.4", got[1].IPAddress)
}

// The service runs unchanged on top of the SQLite store.
func TestStore_WithService(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	svc := core.NewService(s, core.Options{})

	res, err := svc.Reconcile(ctx, []core.SheetResult{{Name: "Jan"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.DeletedCount)

	audit, err := svc.AuditLog(ctx, 5)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, core.ActionReconcile, audit[0].Action)
}
