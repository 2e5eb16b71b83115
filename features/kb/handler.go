package kb

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"paperbase/apps/backend/internal/middleware"
)

type DocumentRepo interface {
	CountVisible(ctx context.Context, ownerID int) (int, error)
	DistinctLanguages(ctx context.Context, ownerID int) ([]string, error)
}

type ChunkCounter interface {
	CountChunks(ctx context.Context, scope string, ownerID int) (int, error)
}

type Handler struct {
	documents DocumentRepo
	chunks    ChunkCounter
}

func NewHandler(documents DocumentRepo, chunks ChunkCounter) *Handler {
	return &Handler{documents: documents, chunks: chunks}
}

// StatusResponse describes the knowledge base as the caller sees it:
// shared global documents plus their own.
type StatusResponse struct {
	AvailableDocuments int      `json:"available_documents"`
	TotalChunks        int      `json:"total_chunks"`
	Languages          []string `json:"languages"`
	IsEmpty            bool     `json:"is_empty"`
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident := middleware.GetIdentity(ctx)

	docCount, err := h.documents.CountVisible(ctx, ident.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	languages, err := h.documents.DistinctLanguages(ctx, ident.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list languages", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list languages", http.StatusInternalServerError)
		return
	}
	if languages == nil {
		languages = []string{}
	}

	globalChunks, err := h.chunks.CountChunks(ctx, "global", 0)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count global chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}
	userChunks, err := h.chunks.CountChunks(ctx, "user", ident.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count user chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		AvailableDocuments: docCount,
		TotalChunks:        globalChunks + userChunks,
		Languages:          languages,
		IsEmpty:            docCount == 0,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
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
