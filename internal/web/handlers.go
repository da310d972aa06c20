package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/core"
)

// Success messages returned to clients.
const (
	msgUploadOK     = "File processed successfully"
	msgImportOK     = "Data updated successfully!"
	msgImportFailed = "Failed to update data"
)

// multipartOverhead is the allowance for multipart framing on top of the
// workbook size limit.
const multipartOverhead = 64 << 10

// maxSnapshotBytes bounds JSON bodies of import and export requests.
const maxSnapshotBytes = 16 << 20

type uploadResponse struct {
	Message string `json:"message"`
	*core.UploadResult
}

type importResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// snapshotRequest is the body of /api/import and /api/export.
type snapshotRequest struct {
	Data []core.SheetResult `json:"data"`
}

// handleUpload accepts a multipart form with one .xlsx file in "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, uploadFormError(err), "")
		return
	}
	defer file.Close()

	result, err := s.service.Upload(withRequestMetadata(r), header.Filename, file)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Message: msgUploadOK, UploadResult: result})
}

func uploadFormError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return core.ErrNoFile
	case errors.As(err, &maxErr):
		return fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, maxErr.Limit)
	default:
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
}

// handleImport reconciles the store against the edited preview.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSnapshot(w, r)
	if err != nil {
		fail(w, r, err, msgImportFailed)
		return
	}

	result, err := s.service.Reconcile(withRequestMetadata(r), req.Data)
	if err != nil {
		fail(w, r, err, msgImportFailed)
		return
	}

	writeJSON(w, http.StatusOK, importResponse{Message: msgImportOK, DeletedCount: result.DeletedCount})
}

// handleExport renders the posted sheets as an .xlsx download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSnapshot(w, r)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	name := "export-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	sendWorkbook(w, r, name, req.Data)
}

// handleTemplate serves an empty workbook carrying only the header row.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	sendWorkbook(w, r, "template.xlsx", []core.SheetResult{{Name: "Sheet1"}})
}

func sendWorkbook(w http.ResponseWriter, r *http.Request, name string, sheets []core.SheetResult) {
	var buf bytes.Buffer
	if err := core.WriteWorkbook(&buf, sheets); err != nil {
		fail(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func decodeSnapshot(w http.ResponseWriter, r *http.Request) (*snapshotRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSnapshotBytes)

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSnapshot, err)
	}
	if len(req.Data) == 0 {
		return nil, core.ErrEmptySnapshot
	}
	return &req, nil
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Records(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	if records == nil {
		records = []core.StoredRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "limit must be a positive integer",
				Message: "limit must be a positive integer",
				Code:    "ERR000",
			})
			return
		}
		limit = n
	}

	entries, err := s.service.AuditLog(r.Context(), limit)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uploads": s.service.UploadStatus(),
	})
}
