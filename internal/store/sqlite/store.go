// Package sqlite implements core.Store on a local SQLite database.
//
// It is meant for single-user runs and tests. Dates are stored as ISO text
// and timestamps as RFC 3339 text, so the file stays readable with the
// sqlite3 shell.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// deleteChunk keeps DELETE ... IN (...) below SQLite's variable limit.
const deleteChunk = 500

// Store is a core.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ core.Store   = (*Store)(nil)
	_ core.StoreTx = queries{}
)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn in a transaction and commits when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(core.StoreTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(queries{tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context) ([]core.StoredRecord, error) {
	return queries{s.db}.ListRecords(ctx)
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, file_name, rows_affected, ip_address, user_agent, created_at
		FROM audit_log
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.AuditEntry
	for rows.Next() {
		var e core.AuditEntry
		var action, created string
		if err := rows.Scan(&e.ID, &action, &e.FileName, &e.RowsAffected, &e.IPAddress, &e.UserAgent, &created); err != nil {
			return nil, err
		}
		e.Action = core.AuditAction(action)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("audit %s: created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func (q queries) DeleteAll(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q queries) Exists(ctx context.Context, r core.Record) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM records
			WHERE name = ? AND amount = ? AND date = ? AND verified = ?
		)`, r.Name, r.Amount, r.Date.String(), r.Verified).Scan(&exists)
	return exists, err
}

func (q queries) Insert(ctx context.Context, r core.StoredRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO records (id, sheet_name, name, amount, date, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Sheet, r.Name, r.Amount, r.Date.String(), r.Verified, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (q queries) ListRecords(ctx context.Context) ([]core.StoredRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, sheet_name, name, amount, date, verified, created_at
		FROM records
		ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.StoredRecord
	for rows.Next() {
		var r core.StoredRecord
		var d, created string
		if err := rows.Scan(&r.ID, &r.Sheet, &r.Name, &r.Amount, &d, &r.Verified, &created); err != nil {
			return nil, err
		}
		if r.Date, err = civil.ParseDate(d); err != nil {
			return nil, fmt.Errorf("record %s: date: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("record %s: created_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q queries) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		res, err := q.db.ExecContext(ctx, `DELETE FROM records WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (q queries) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, file_name, rows_affected, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.FileName, e.RowsAffected, e.IPAddress, e.UserAgent, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}
