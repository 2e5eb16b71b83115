package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"paperbase/apps/backend/features/document"
	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/adapter/docling"
	"paperbase/apps/backend/internal/lifecycle"
	"paperbase/apps/backend/internal/middleware"
	"paperbase/apps/backend/internal/text"
	"paperbase/apps/backend/internal/vectorstore"
)

// IngestConsumer runs the ingestion pipeline for one queued document per
// message: claim the task, extract, chunk, embed, persist, finalize.
type IngestConsumer struct {
	tasks     task.Repository
	documents document.Repository
	extractor Extractor
	persister Persister
	chunks    vectorstore.ChunkStore
	records   vectorstore.Repository
}

func NewIngestConsumer(tasks task.Repository, documents document.Repository, extractor Extractor, persister Persister, chunks vectorstore.ChunkStore, records vectorstore.Repository) *IngestConsumer {
	return &IngestConsumer{
		tasks:     tasks,
		documents: documents,
		extractor: extractor,
		persister: persister,
		chunks:    chunks,
		records:   records,
	}
}

type ingestPayload struct {
	TaskID        string `json:"task_id"`
	DocumentID    string `json:"document_id"`
	Path          string `json:"path"`
	Filename      string `json:"filename"`
	Scope         string `json:"scope"`
	OwnerID       int    `json:"owner_id"`
	CorrelationID string `json:"correlation_id"`
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ingestPayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil // don't retry invalid messages
	}
	if payload.TaskID == "" || payload.DocumentID == "" || payload.Path == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping",
			"task_id", payload.TaskID, "document_id", payload.DocumentID)
		return nil
	}

	// Claim first. A redelivered or raced message loses here and is dropped;
	// the winning worker already owns the task.
	if err := h.tasks.Claim(ctx, payload.TaskID); err != nil {
		if errors.Is(err, task.ErrAlreadyClaimed) {
			slog.InfoContext(ctx, "task not claimable, skipping", "task_id", payload.TaskID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to claim task", "error", err, "task_id", payload.TaskID)
		return err
	}
	if err := h.documents.MarkProcessing(ctx, payload.DocumentID); err != nil {
		slog.WarnContext(ctx, "failed to mark document processing", "error", err, "document_id", payload.DocumentID)
	}

	slog.InfoContext(ctx, "ingestion started",
		"task_id", payload.TaskID, "document_id", payload.DocumentID, "path", payload.Path)

	_ = h.tasks.SetProgress(ctx, payload.TaskID, ProgressExtracting)
	extraction, err := h.extractor.Extract(ctx, payload.Path)
	if err != nil {
		if errors.Is(err, docling.ErrExtraction) {
			h.fail(ctx, payload, fmt.Sprintf("text extraction failed: %v", err))
			return nil
		}
		h.fail(ctx, payload, fmt.Sprintf("extraction error: %v", err))
		return nil
	}

	if h.cancelled(ctx, payload) {
		return nil
	}

	_ = h.tasks.SetProgress(ctx, payload.TaskID, ProgressChunking)
	chunks := text.SplitPages(extraction.Pages, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		h.fail(ctx, payload, "document contains no extractable text")
		return nil
	}

	_ = h.tasks.SetProgress(ctx, payload.TaskID, ProgressEmbedding)
	rec, err := h.persister.Persist(ctx, vectorstore.Document{
		ID:       payload.DocumentID,
		Scope:    payload.Scope,
		OwnerID:  payload.OwnerID,
		Language: extraction.Language,
		Filename: payload.Filename,
	}, chunks)
	if err != nil {
		h.fail(ctx, payload, err.Error())
		return nil
	}

	// A cancel that lands mid-persist is honored here: the stored chunks
	// are rolled back and the document ends cancelled, not completed.
	if h.cancelled(ctx, payload) {
		if err := h.chunks.DeleteChunksByDocumentID(ctx, payload.DocumentID); err != nil {
			slog.WarnContext(ctx, "failed to remove chunks of cancelled ingestion", "error", err, "document_id", payload.DocumentID)
		}
		if err := h.records.DeactivateByDocument(ctx, payload.DocumentID); err != nil {
			slog.WarnContext(ctx, "failed to deactivate record of cancelled ingestion", "error", err, "document_id", payload.DocumentID)
		}
		return nil
	}

	_ = h.tasks.SetProgress(ctx, payload.TaskID, ProgressSaving)
	if err := h.documents.MarkCompleted(ctx, payload.DocumentID, rec.StorePath, extraction.Language, extraction.PageCount); err != nil {
		if errors.Is(err, document.ErrAlreadyTerminal) {
			slog.WarnContext(ctx, "document finished elsewhere before completion", "document_id", payload.DocumentID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to mark document completed", "error", err, "document_id", payload.DocumentID)
		return err
	}
	if err := h.tasks.MarkCompleted(ctx, payload.TaskID); err != nil {
		if errors.Is(err, task.ErrAlreadyTerminal) {
			slog.WarnContext(ctx, "task finished elsewhere before completion", "task_id", payload.TaskID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to mark task completed", "error", err, "task_id", payload.TaskID)
		return err
	}

	slog.InfoContext(ctx, "ingestion completed",
		"task_id", payload.TaskID, "document_id", payload.DocumentID,
		"chunks", rec.ChunkCount, "pages", extraction.PageCount, "language", extraction.Language)
	return nil
}

// cancelled checks the task at a pipeline checkpoint. A cancelled task stops
// the run and marks the document to match.
func (h *IngestConsumer) cancelled(ctx context.Context, payload ingestPayload) bool {
	t, err := h.tasks.Get(ctx, payload.TaskID)
	if err != nil {
		slog.WarnContext(ctx, "failed to check task status", "error", err, "task_id", payload.TaskID)
		return false
	}
	if t.Status != lifecycle.StatusCancelled {
		return false
	}

	slog.InfoContext(ctx, "ingestion cancelled", "task_id", payload.TaskID, "document_id", payload.DocumentID)
	if err := h.documents.MarkCancelled(ctx, payload.DocumentID); err != nil && !errors.Is(err, document.ErrAlreadyTerminal) {
		slog.WarnContext(ctx, "failed to mark document cancelled", "error", err, "document_id", payload.DocumentID)
	}
	return true
}

func (h *IngestConsumer) fail(ctx context.Context, payload ingestPayload, message string) {
	slog.ErrorContext(ctx, "ingestion failed",
		"task_id", payload.TaskID, "document_id", payload.DocumentID, "error", message)

	if err := h.tasks.MarkFailed(ctx, payload.TaskID, message); err != nil && !errors.Is(err, task.ErrAlreadyTerminal) {
		slog.ErrorContext(ctx, "failed to mark task failed", "error", err, "task_id", payload.TaskID)
	}
	if err := h.documents.MarkFailed(ctx, payload.DocumentID, message); err != nil && !errors.Is(err, document.ErrAlreadyTerminal) {
		slog.ErrorContext(ctx, "failed to mark document failed", "error", err, "document_id", payload.DocumentID)
	}
}
