package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// persistRecords replaces the store contents with records, skipping any
// record whose equality key is already stored. Duplicates inside one upload
// collapse to the first occurrence. It returns the number of inserted rows.
//
// The caller owns the transaction; on error nothing here is committed.
func persistRecords(ctx context.Context, tx StoreTx, records []SheetRecord) (int, error) {
	if _, err := tx.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}

	now := time.Now().UTC()
	imported := 0
	for _, sr := range records {
		exists, err := tx.Exists(ctx, sr.Record)
		if err != nil {
			return 0, fmt.Errorf("check %q: %w", sr.Record.Name, err)
		}
		if exists {
			continue
		}

		stored := StoredRecord{
			ID:        uuid.NewString(),
			Sheet:     sr.Sheet,
			CreatedAt: now,
			Record:    sr.Record,
		}
		if err := tx.Insert(ctx, stored); err != nil {
			return 0, fmt.Errorf("insert %q: %w", sr.Record.Name, err)
		}
		imported++
	}
	return imported, nil
}
