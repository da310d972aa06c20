package core

import (
	"context"
	"fmt"
)

// SnapshotKeys returns the equality keys of every row in sheets.
// Sheet names play no part in the key.
func SnapshotKeys(sheets []SheetResult) map[EqualityKey]struct{} {
	keys := make(map[EqualityKey]struct{})
	for _, sheet := range sheets {
		for _, rec := range sheet.Rows {
			keys[rec.Key()] = struct{}{}
		}
	}
	return keys
}

// StaleRecordIDs returns the ids of stored records whose key is not in keep,
// in store order.
func StaleRecordIDs(stored []StoredRecord, keep map[EqualityKey]struct{}) []string {
	var ids []string
	for _, r := range stored {
		if _, ok := keep[r.Key()]; !ok {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// reconcileRecords deletes every stored record absent from sheets and
// returns how many were removed. It never inserts.
func reconcileRecords(ctx context.Context, tx StoreTx, sheets []SheetResult) (int64, error) {
	stored, err := tx.ListRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	ids := StaleRecordIDs(stored, SnapshotKeys(sheets))
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := tx.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete %d records: %w", len(ids), err)
	}
	return deleted, nil
}
