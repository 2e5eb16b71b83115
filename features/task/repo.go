package task

import (
	"context"
	"database/sql"
	"time"

	"paperbase/apps/backend/internal/lifecycle"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, ownerID int, all bool) ([]Task, error)
	Claim(ctx context.Context, id string) error
	SetProgress(ctx context.Context, id, message string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	MarkCancelled(ctx context.Context, id string) error
	CancelActiveForDocument(ctx context.Context, documentID string) error
	FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]Task, error)
	CleanupOld(ctx context.Context, retention time.Duration) (int64, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const taskColumns = `id, document_id, owner_id, type, filename, status, progress_message, error_message, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	t := &Task{}
	var status string
	err := row.Scan(&t.ID, &t.DocumentID, &t.OwnerID, &t.Type, &t.Filename, &status,
		&t.ProgressMessage, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = lifecycle.Status(status)
	return t, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) List(ctx context.Context, ownerID int, all bool) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 100`
	args := []interface{}{ownerID}
	if all {
		query = `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC LIMIT 100`
		args = nil
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Claim moves a waiting task to processing. The conditional update makes the
// claim atomic: of N racing workers exactly one sees an affected row.
func (r *PostgresRepo) Claim(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET status = 'processing', progress_message = 'Starting ingestion...', updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'pending')
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

func (r *PostgresRepo) SetProgress(ctx context.Context, id, message string) error {
	query := `UPDATE tasks SET progress_message = $1, updated_at = NOW() WHERE id = $2 AND status = 'processing'`
	_, err := r.db.ExecContext(ctx, query, message, id)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET status = 'completed', progress_message = 'Completed', updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE tasks
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	res, err := r.db.ExecContext(ctx, query, errorMessage, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) MarkCancelled(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET status = 'cancelled', progress_message = 'Cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'pending', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) CancelActiveForDocument(ctx context.Context, documentID string) error {
	query := `
		UPDATE tasks
		SET status = 'cancelled', progress_message = 'Cancelled', updated_at = NOW()
		WHERE document_id = $1 AND status IN ('queued', 'pending', 'processing')
	`
	_, err := r.db.ExecContext(ctx, query, documentID)
	return err
}

func (r *PostgresRepo) FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'processing' AND updated_at < NOW() - ($1 * INTERVAL '1 second')`
	rows, err := r.db.QueryContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *PostgresRepo) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM tasks
		WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < NOW() - ($1 * INTERVAL '1 second')
	`
	res, err := r.db.ExecContext(ctx, query, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}
