package vectorstore

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Replace(ctx context.Context, rec *Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE vector_store_records SET is_active = FALSE WHERE document_id = $1 AND is_active`,
		rec.DocumentID); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO vector_store_records (document_id, store_path, chunk_count, embedding_model, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING id, created_at`,
		rec.DocumentID, rec.StorePath, rec.ChunkCount, rec.EmbeddingModel).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.IsActive = true

	return tx.Commit()
}

func (r *PostgresRepo) GetActiveByDocument(ctx context.Context, documentID string) (*Record, error) {
	rec := &Record{}
	query := `
		SELECT id, document_id, store_path, chunk_count, embedding_model, is_active, created_at
		FROM vector_store_records
		WHERE document_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&rec.ID, &rec.DocumentID, &rec.StorePath, &rec.ChunkCount, &rec.EmbeddingModel, &rec.IsActive, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepo) DeactivateByDocument(ctx context.Context, documentID string) error {
	query := `UPDATE vector_store_records SET is_active = FALSE WHERE document_id = $1 AND is_active`
	_, err := r.db.ExecContext(ctx, query, documentID)
	return err
}
