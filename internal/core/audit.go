package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionUpload    AuditAction = "upload"
	ActionReconcile AuditAction = "reconcile"
)

// DefaultAuditLimit is the page size used when a caller does not set one.
const DefaultAuditLimit = 50

// MaxAuditLimit caps how many entries a single query may return.
const MaxAuditLimit = 500

// AuditEntry records one state-changing operation against the store.
type AuditEntry struct {
	ID           string      `json:"id"`
	Action       AuditAction `json:"action"`
	FileName     string      `json:"fileName,omitempty"`
	RowsAffected int64       `json:"rowsAffected"`
	IPAddress    string      `json:"ipAddress,omitempty"`
	UserAgent    string      `json:"userAgent,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// newAuditEntry builds an entry for action, pulling the client details the
// web layer stored on ctx.
func newAuditEntry(ctx context.Context, action AuditAction, fileName string, rows int64) AuditEntry {
	return AuditEntry{
		ID:           uuid.NewString(),
		Action:       action,
		FileName:     fileName,
		RowsAffected: rows,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		CreatedAt:    time.Now().UTC(),
	}
}

// clampAuditLimit keeps limit within (0, MaxAuditLimit].
func clampAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAuditLimit
	case limit > MaxAuditLimit:
		return MaxAuditLimit
	default:
		return limit
	}
}
