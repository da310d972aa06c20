package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/logging"
)

// DefaultMaxFileSize is the largest workbook Upload accepts (2 MiB).
const DefaultMaxFileSize int64 = 2 << 20

// DefaultUploadTimeout bounds processing and persistence of one upload.
const DefaultUploadTimeout = 2 * time.Minute

// Options tunes a Service. Zero fields fall back to the defaults.
type Options struct {
	MaxConcurrentUploads int
	MaxUploadWait        time.Duration
	UploadTimeout        time.Duration
	MaxFileSize          int64
}

func (o Options) withDefaults() Options {
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = DefaultUploadTimeout
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	return o
}

// Service is the entry point for upload, reconcile and query operations.
// It is safe for concurrent use; the Store serializes conflicting writes.
type Service struct {
	store   Store
	limiter *UploadLimiter
	opts    Options
}

// NewService creates a Service backed by store.
func NewService(store Store, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:   store,
		limiter: NewUploadLimiter(opts.MaxConcurrentUploads, opts.MaxUploadWait),
		opts:    opts,
	}
}

// UploadResult is returned to the client after a successful upload.
type UploadResult struct {
	ImportedCount int               `json:"importedCount"`
	Errors        []ValidationError `json:"errors"`
	Sheets        []SheetResult     `json:"sheets"`
}

// ReconcileResult reports what a reconcile removed.
type ReconcileResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Upload validates the workbook read from r and replaces the store contents
// with its valid rows. Row and sheet problems are returned in the result,
// not as an error. An error means nothing was persisted.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (*UploadResult, error) {
	log := logging.WithFields(ctx, "file", fileName)

	data, err := s.readWorkbook(fileName, r)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	start := time.Now()

	f, err := OpenWorkbook(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	processed, err := ProcessWorkbook(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}

	var imported int
	err = s.store.WithTx(ctx, func(tx StoreTx) error {
		n, err := persistRecords(ctx, tx, processed.ValidRecords())
		if err != nil {
			return err
		}
		imported = n
		return tx.InsertAudit(ctx, newAuditEntry(ctx, ActionUpload, fileName, int64(n)))
	})
	if err != nil {
		return nil, fmt.Errorf("persist upload: %w", err)
	}

	log.Info("upload processed",
		"sheets", len(processed.Sheets),
		"imported", imported,
		"rejected", len(processed.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &UploadResult{
		ImportedCount: imported,
		Errors:        processed.Errors,
		Sheets:        processed.Sheets,
	}, nil
}

// readWorkbook applies the upload guards and buffers the file.
func (s *Service) readWorkbook(fileName string, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return nil, ErrNotXLSX
	}

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, ErrEmptyFile
	case int64(len(data)) > s.opts.MaxFileSize:
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.opts.MaxFileSize)
	}
	return data, nil
}

// Reconcile deletes every stored record whose key does not appear in
// sheets. A snapshot with sheets but no rows deletes everything.
func (s *Service) Reconcile(ctx context.Context, sheets []SheetResult) (*ReconcileResult, error) {
	if len(sheets) == 0 {
		return nil, ErrEmptySnapshot
	}
	log := logging.FromContext(ctx)

	rows := 0
	for _, sh := range sheets {
		rows += len(sh.Rows)
	}

	var deleted int64
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		n, err := reconcileRecords(ctx, tx, sheets)
		if err != nil {
			return err
		}
		deleted = n
		return tx.InsertAudit(ctx, newAuditEntry(ctx, ActionReconcile, "", n))
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	if rows == 0 {
		log.Warn("reconcile snapshot had no rows, store emptied", "deleted", deleted)
	} else {
		log.Info("reconcile complete", "kept_rows", rows, "deleted", deleted)
	}
	return &ReconcileResult{DeletedCount: deleted}, nil
}

// Records returns every persisted record.
func (s *Service) Records(ctx context.Context) ([]StoredRecord, error) {
	return s.store.ListRecords(ctx)
}

// AuditLog returns up to limit recent audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	return s.store.ListAudit(ctx, clampAuditLimit(limit))
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// WaitForUploads blocks until in-flight uploads finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// UploadStatus reports upload slot usage.
func (s *Service) UploadStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// MaxFileSize is the upload size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}
