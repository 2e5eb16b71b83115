package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"paperbase/apps/backend/internal/fingerprint"
	"paperbase/apps/backend/internal/lifecycle"
	"paperbase/apps/backend/internal/middleware"
)

type Handler struct {
	service       *Service
	uploadDir     string
	maxUploadSize int64
}

func NewHandler(service *Service, uploadDir string, maxUploadMB int) *Handler {
	return &Handler{
		service:       service,
		uploadDir:     uploadDir,
		maxUploadSize: int64(maxUploadMB) << 20,
	}
}

// Upload accepts a PDF, saves it under a collision-free name, fingerprints
// it while copying, and queues the ingestion task.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	scope := r.FormValue("scope")
	if scope == "" {
		scope = ScopeUser
	}
	if scope != ScopeUser && scope != ScopeGlobal {
		h.writeError(ctx, w, "VALIDATION_ERROR", "scope must be 'user' or 'global'", http.StatusBadRequest)
		return
	}
	if scope == ScopeGlobal && !ident.Admin {
		h.writeError(ctx, w, "FORBIDDEN", "Admin role required for global uploads", http.StatusForbidden)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".pdf" {
		h.writeError(ctx, w, "BAD_REQUEST", "Only PDF files are supported", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", filepath.Clean(h.uploadDir))
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	path := filepath.Clean(filepath.Join(h.uploadDir, filename))

	dst, err := os.Create(path) // #nosec G304 -- path is constructed from UUID + sanitized basename, not user-controlled
	if err != nil {
		slog.ErrorContext(ctx, "failed to create file", "error", err, "path", path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	hash, err := fingerprint.Digest(io.TeeReader(file, dst))
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to write file", http.StatusInternalServerError)
		return
	}

	result, err := h.service.Ingest(ctx, IngestCommand{
		Filename:         filename,
		OriginalFilename: filepath.Base(header.Filename),
		FilePath:         path,
		FileSize:         header.Size,
		ContentHash:      hash,
		Scope:            scope,
		UploadedBy:       ident.UserID,
	})
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up uploaded file", "error", removeErr, "path", path)
		}

		var completed *DuplicateCompletedError
		if errors.As(err, &completed) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			resp := map[string]interface{}{
				"error": map[string]string{
					"code":    "DUPLICATE_COMPLETED",
					"message": "Document already ingested",
				},
				"existingDocumentId": completed.ExistingID,
				"correlationId":      middleware.GetCorrelationID(ctx),
			}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				slog.ErrorContext(ctx, "failed to encode response", "error", err)
			}
			return
		}

		var inFlight *DuplicateInFlightError
		if errors.As(err, &inFlight) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			resp := map[string]interface{}{
				"error": map[string]string{
					"code":    "DUPLICATE_IN_FLIGHT",
					"message": "Document ingestion already in progress",
				},
				"taskId":        inFlight.TaskID,
				"correlationId": middleware.GetCorrelationID(ctx),
			}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				slog.ErrorContext(ctx, "failed to encode response", "error", err)
			}
			return
		}

		slog.ErrorContext(ctx, "ingestion failed to queue", "error", err, "filename", header.Filename)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	detail, err := h.service.Get(ctx, id, middleware.GetIdentity(ctx))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": detail}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := lifecycle.Parse(status); err != nil {
			h.writeError(ctx, w, "VALIDATION_ERROR", "Unknown status filter", http.StatusBadRequest)
			return
		}
	}

	docs, err := h.service.List(ctx, middleware.GetIdentity(ctx),
		r.URL.Query().Get("scope"), status)
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Delete(ctx, id, middleware.GetIdentity(ctx)); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
