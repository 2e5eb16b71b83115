package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paperbase/apps/backend/features/document"
	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/vectorstore"
)

// Sweeper is the recovery loop for tasks orphaned by a crashed or stalled
// worker. A processing task that has not been touched within the stale
// window is resolved by evidence: an active store record means the work
// finished and only the final marks were lost, no record means the run died.
type Sweeper struct {
	tasks      task.Repository
	documents  document.Repository
	records    vectorstore.Repository
	staleAfter time.Duration
	interval   time.Duration
	retention  time.Duration
}

func NewSweeper(tasks task.Repository, documents document.Repository, records vectorstore.Repository, staleAfter, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		tasks:      tasks,
		documents:  documents,
		records:    records,
		staleAfter: staleAfter,
		interval:   interval,
		retention:  retention,
	}
}

// Run sweeps on a fixed interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "sweeper started", "interval", s.interval, "stale_after", s.staleAfter)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep resolves all currently stale tasks and prunes old terminal ones.
func (s *Sweeper) Sweep(ctx context.Context) {
	stale, err := s.tasks.FindStaleProcessing(ctx, s.staleAfter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find stale tasks", "error", err)
		return
	}

	for _, t := range stale {
		s.resolve(ctx, t)
	}

	removed, err := s.tasks.CleanupOld(ctx, s.retention)
	if err != nil {
		slog.ErrorContext(ctx, "failed to clean up old tasks", "error", err)
		return
	}
	if removed > 0 {
		slog.InfoContext(ctx, "old tasks pruned", "removed", removed)
	}
}

func (s *Sweeper) resolve(ctx context.Context, t task.Task) {
	rec, err := s.records.GetActiveByDocument(ctx, t.DocumentID)
	switch {
	case err == nil:
		doc, docErr := s.documents.Get(ctx, t.DocumentID)
		language, pageCount := "", 0
		if docErr == nil {
			language, pageCount = doc.Language, doc.PageCount
		}
		if err := s.documents.MarkCompleted(ctx, t.DocumentID, rec.StorePath, language, pageCount); err != nil && !errors.Is(err, document.ErrAlreadyTerminal) {
			slog.ErrorContext(ctx, "failed to complete recovered document", "error", err, "document_id", t.DocumentID)
			return
		}
		if err := s.tasks.MarkCompleted(ctx, t.ID); err != nil && !errors.Is(err, task.ErrAlreadyTerminal) {
			slog.ErrorContext(ctx, "failed to complete recovered task", "error", err, "task_id", t.ID)
			return
		}
		slog.InfoContext(ctx, "stale task recovered as completed",
			"task_id", t.ID, "document_id", t.DocumentID, "chunks", rec.ChunkCount)

	case errors.Is(err, sql.ErrNoRows):
		message := fmt.Sprintf("ingestion timed out after %s", s.staleAfter)
		if err := s.tasks.MarkFailed(ctx, t.ID, message); err != nil {
			// A terminal task means a worker finished the pair between our
			// stale snapshot and this write. The document is theirs to keep.
			if errors.Is(err, task.ErrAlreadyTerminal) {
				slog.InfoContext(ctx, "stale task finished elsewhere", "task_id", t.ID, "document_id", t.DocumentID)
				return
			}
			slog.ErrorContext(ctx, "failed to fail stale task", "error", err, "task_id", t.ID)
			return
		}
		if err := s.documents.MarkFailed(ctx, t.DocumentID, message); err != nil && !errors.Is(err, document.ErrAlreadyTerminal) {
			slog.ErrorContext(ctx, "failed to fail stale document", "error", err, "document_id", t.DocumentID)
		}
		slog.WarnContext(ctx, "stale task failed", "task_id", t.ID, "document_id", t.DocumentID)

	default:
		slog.ErrorContext(ctx, "failed to check store record of stale task", "error", err, "task_id", t.ID)
	}
}
