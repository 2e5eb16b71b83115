package task

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"paperbase/apps/backend/internal/lifecycle"
	"paperbase/apps/backend/internal/middleware"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a task visible to the caller. Tasks of other users are
// indistinguishable from missing ones unless the caller is an admin.
func (s *Service) Get(ctx context.Context, id string, ident middleware.Identity) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ident.UserID && !ident.Admin {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, ident middleware.Identity) ([]Task, error) {
	return s.repo.List(ctx, ident.UserID, ident.Admin)
}

// Cancel requests cancellation of a waiting or running task. A running task
// is not interrupted mid-chunk; the worker observes the status at its next
// checkpoint and stops.
func (s *Service) Cancel(ctx context.Context, id string, ident middleware.Identity) (*Task, error) {
	t, err := s.Get(ctx, id, ident)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(lifecycle.StatusCancelled) {
		return nil, ErrAlreadyTerminal
	}

	if err := s.repo.MarkCancelled(ctx, t.ID); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task cancelled", "task_id", t.ID, "previous_status", t.Status)
	return s.repo.Get(ctx, t.ID)
}

// Cleanup removes terminal tasks older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.repo.CleanupOld(ctx, retention)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.InfoContext(ctx, "old tasks cleaned up", "removed", removed)
	}
	return removed, nil
}
