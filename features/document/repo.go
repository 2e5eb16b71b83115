package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/lifecycle"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const documentColumns = `id, filename, original_filename, file_path, file_size, content_hash, scope, uploaded_by, status, language, page_count, vector_store_path, error_message, created_at, updated_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	d := &Document{}
	var status string
	var language, storePath, errorMessage sql.NullString
	var pageCount sql.NullInt64
	err := row.Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FilePath, &d.FileSize, &d.ContentHash, &d.Scope, &d.UploadedBy,
		&status, &language, &pageCount, &storePath, &errorMessage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = lifecycle.Status(status)
	d.Language = language.String
	d.PageCount = int(pageCount.Int64)
	d.VectorStorePath = storePath.String
	d.ErrorMessage = errorMessage.String
	return d, nil
}

// CreateWithTask performs the content-hash dedup and the document plus task
// insert inside one transaction. The existing row is locked so two
// concurrent uploads of the same file cannot both pass the check.
func (r *PostgresRepo) CreateWithTask(ctx context.Context, doc *Document, t *task.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		SELECT id, status FROM documents
		WHERE content_hash = $1 AND scope = $2 AND deleted_at IS NULL
		FOR UPDATE
	`
	args := []interface{}{doc.ContentHash, doc.Scope}
	if doc.Scope == ScopeUser {
		query = `
			SELECT id, status FROM documents
			WHERE content_hash = $1 AND scope = $2 AND uploaded_by = $3 AND deleted_at IS NULL
			FOR UPDATE
		`
		args = append(args, doc.UploadedBy)
	}

	var existingID string
	var existingStatus string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&existingID, &existingStatus)
	switch {
	case err == nil:
		switch lifecycle.Status(existingStatus) {
		case lifecycle.StatusCompleted:
			return &DuplicateCompletedError{ExistingID: existingID}
		case lifecycle.StatusQueued, lifecycle.StatusPending, lifecycle.StatusProcessing:
			var taskID string
			taskQuery := `
				SELECT id FROM tasks
				WHERE document_id = $1 AND status IN ('queued', 'pending', 'processing')
				ORDER BY created_at DESC LIMIT 1
			`
			if scanErr := tx.QueryRowContext(ctx, taskQuery, existingID).Scan(&taskID); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
				return scanErr
			}
			return &DuplicateInFlightError{TaskID: taskID}
		default:
			// A failed or cancelled attempt does not block re-upload. The
			// old row is retired and a fresh attempt starts from scratch.
			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET deleted_at = NOW() WHERE id = $1`, existingID); err != nil {
				return err
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		// no prior upload
	default:
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (filename, original_filename, file_path, file_size, content_hash, scope, uploaded_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.ContentHash, doc.Scope, doc.UploadedBy, string(doc.Status)).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tasks (document_id, owner_id, type, filename, status, progress_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, doc.ID, t.OwnerID, t.Type, t.Filename, string(t.Status), t.ProgressMessage).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}
	t.DocumentID = doc.ID

	return tx.Commit()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND deleted_at IS NULL`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// List returns documents visible to ownerID, newest first. ownerID 0 lifts
// the visibility restriction (admin). Scope and status narrow the result
// when non-empty.
func (r *PostgresRepo) List(ctx context.Context, scope string, ownerID int, status string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE deleted_at IS NULL`
	var args []interface{}

	if ownerID != 0 {
		args = append(args, ownerID)
		query += fmt.Sprintf(` AND (scope = 'global' OR uploaded_by = $%d)`, len(args))
	}
	if scope != "" {
		args = append(args, scope)
		query += fmt.Sprintf(` AND scope = $%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) MarkProcessing(ctx context.Context, id string) error {
	query := `UPDATE documents SET status = 'processing', updated_at = NOW() WHERE id = $1 AND status IN ('queued', 'pending')`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id, vectorStorePath, language string, pageCount int) error {
	query := `
		UPDATE documents
		SET status = 'completed', vector_store_path = $1, language = $2, page_count = $3,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $4 AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	res, err := r.db.ExecContext(ctx, query, vectorStorePath, language, pageCount, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE documents
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
		UPDATE documents
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
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

func (r *PostgresRepo) CountVisible(ctx context.Context, ownerID int) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM documents
		WHERE deleted_at IS NULL AND status = 'completed' AND (scope = 'global' OR uploaded_by = $1)
	`
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count)
	return count, err
}

func (r *PostgresRepo) DistinctLanguages(ctx context.Context, ownerID int) ([]string, error) {
	query := `
		SELECT DISTINCT language FROM documents
		WHERE deleted_at IS NULL AND status = 'completed' AND language IS NOT NULL
		  AND (scope = 'global' OR uploaded_by = $1)
		ORDER BY language
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var languages []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		languages = append(languages, lang)
	}
	return languages, rows.Err()
}
