package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"paperbase/apps/backend/internal/middleware"
)

type Handler struct {
	service   *Service
	retention time.Duration
}

func NewHandler(s *Service, retention time.Duration) *Handler {
	return &Handler{service: s, retention: retention}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	t, err := h.service.Get(ctx, id, middleware.GetIdentity(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Task not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get task", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": t}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tasks, err := h.service.List(ctx, middleware.GetIdentity(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tasks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if tasks == nil {
		tasks = []Task{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": tasks,
		"meta": map[string]int{"count": len(tasks)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	t, err := h.service.Cancel(ctx, id, middleware.GetIdentity(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Task not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrAlreadyTerminal) {
			h.writeError(ctx, w, "CONFLICT", "Task already finished", http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "failed to cancel task", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": t}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !middleware.GetIdentity(ctx).Admin {
		h.writeError(ctx, w, "FORBIDDEN", "Admin role required", http.StatusForbidden)
		return
	}

	removed, err := h.service.Cleanup(ctx, h.retention)
	if err != nil {
		slog.ErrorContext(ctx, "task cleanup failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]int64{"removed": removed}}); err != nil {
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
