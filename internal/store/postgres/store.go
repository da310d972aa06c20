// Package postgres implements core.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.Store   = (*Store)(nil)
	_ core.StoreTx = queries{}
)

// Open connects to the database, verifies the connection and applies the
// schema. Applying the schema is idempotent.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx runs fn in a SERIALIZABLE transaction. A concurrent upload or
// reconcile that conflicts fails with a serialization error instead of
// interleaving.
func (s *Store) WithTx(ctx context.Context, fn func(core.StoreTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(queries{tx})
	})
}

func (s *Store) ListRecords(ctx context.Context) ([]core.StoredRecord, error) {
	return queries{s.pool}.ListRecords(ctx)
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, action, file_name, rows_affected, ip_address, user_agent, created_at
		FROM audit_log
		ORDER BY created_at DESC, seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.AuditEntry, error) {
		var e core.AuditEntry
		var action string
		err := row.Scan(&e.ID, &action, &e.FileName, &e.RowsAffected, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		e.Action = core.AuditAction(action)
		return e, err
	})
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements core.StoreTx on top of a querier.
type queries struct {
	db querier
}

func (q queries) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q queries) Exists(ctx context.Context, r core.Record) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM records
			WHERE name = $1 AND amount = $2 AND date = $3 AND verified = $4
		)`, r.Name, r.Amount, toPgDate(r.Date), r.Verified).Scan(&exists)
	return exists, err
}

func (q queries) Insert(ctx context.Context, r core.StoredRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO records (id, sheet_name, name, amount, date, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Sheet, r.Name, r.Amount, toPgDate(r.Date), r.Verified, r.CreatedAt)
	return err
}

func (q queries) ListRecords(ctx context.Context) ([]core.StoredRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id::text, sheet_name, name, amount, date, verified, created_at
		FROM records
		ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.StoredRecord, error) {
		var r core.StoredRecord
		var d pgtype.Date
		if err := row.Scan(&r.ID, &r.Sheet, &r.Name, &r.Amount, &d, &r.Verified, &r.CreatedAt); err != nil {
			return r, err
		}
		r.Date = civil.DateOf(d.Time)
		return r, nil
	})
}

func (q queries) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM records WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q queries) InsertAudit(ctx context.Context, e core.AuditEntry) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_log (id, action, file_name, rows_affected, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, string(e.Action), e.FileName, e.RowsAffected, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}

func toPgDate(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}
