package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/config"
	"paperbase/apps/backend/internal/lifecycle"
	"paperbase/apps/backend/internal/middleware"
	"paperbase/apps/backend/internal/vectorstore"
)

const (
	ScopeGlobal = "global"
	ScopeUser   = "user"
)

var ErrNotFound = errors.New("document not found")

// ErrAlreadyTerminal is returned for status writes against a document that
// already reached completed, failed, or cancelled.
var ErrAlreadyTerminal = errors.New("document already in a terminal state")

// DuplicateCompletedError reports an upload whose content already exists and
// finished ingestion. The caller gets the existing document instead of a new
// task.
type DuplicateCompletedError struct {
	ExistingID string
}

func (e *DuplicateCompletedError) Error() string {
	return fmt.Sprintf("document already ingested as %s", e.ExistingID)
}

// DuplicateInFlightError reports an upload whose content is currently being
// ingested by another task.
type DuplicateInFlightError struct {
	TaskID string
}

func (e *DuplicateInFlightError) Error() string {
	return fmt.Sprintf("document ingestion already in flight under task %s", e.TaskID)
}

type Document struct {
	ID string `json:"id"`
	// Filename is the collision-free name the file is stored under;
	// OriginalFilename is the exact name from the upload.
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"original_filename"`
	FilePath         string           `json:"-"`
	FileSize         int64            `json:"file_size"`
	ContentHash      string           `json:"-"`
	Scope            string           `json:"scope"`
	UploadedBy       int              `json:"uploaded_by"`
	Status           lifecycle.Status `json:"status"`
	Language         string           `json:"language,omitempty"`
	PageCount        int              `json:"page_count,omitempty"`
	VectorStorePath  string           `json:"vector_store_path,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type Repository interface {
	// CreateWithTask runs the dedup check and, when the content is new,
	// inserts the document and its ingestion task in one transaction.
	CreateWithTask(ctx context.Context, doc *Document, t *task.Task) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, scope string, ownerID int, status string) ([]Document, error)
	SoftDelete(ctx context.Context, id string) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, vectorStorePath, language string, pageCount int) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	MarkCancelled(ctx context.Context, id string) error
	CountVisible(ctx context.Context, ownerID int) (int, error)
	DistinctLanguages(ctx context.Context, ownerID int) ([]string, error)
}

type ChunkStore interface {
	GetChunks(ctx context.Context, documentID string) ([]vectorstore.Chunk, error)
	DeleteChunksByDocumentID(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type TaskWriter interface {
	MarkFailed(ctx context.Context, id, errorMessage string) error
	CancelActiveForDocument(ctx context.Context, documentID string) error
}

type RecordStore interface {
	GetActiveByDocument(ctx context.Context, documentID string) (*vectorstore.Record, error)
	DeactivateByDocument(ctx context.Context, documentID string) error
}

type Service struct {
	repo    Repository
	tasks   TaskWriter
	pub     EventPublisher
	chunks  ChunkStore
	records RecordStore
}

func NewService(repo Repository, tasks TaskWriter, pub EventPublisher, chunks ChunkStore, records RecordStore) *Service {
	return &Service{repo: repo, tasks: tasks, pub: pub, chunks: chunks, records: records}
}

// IngestPayload is the message published to the ingestion topic.
type IngestPayload struct {
	TaskID        string `json:"task_id"`
	DocumentID    string `json:"document_id"`
	Path          string `json:"path"`
	Filename      string `json:"filename"`
	Scope         string `json:"scope"`
	OwnerID       int    `json:"owner_id"`
	CorrelationID string `json:"correlation_id"`
}

type IngestCommand struct {
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	ContentHash      string
	Scope            string
	UploadedBy       int
}

type IngestResult struct {
	Document *Document  `json:"document"`
	Task     *task.Task `json:"task"`
}

// Ingest registers an uploaded file and queues its ingestion task. Duplicate
// content surfaces as DuplicateCompletedError or DuplicateInFlightError
// depending on the state of the earlier upload.
func (s *Service) Ingest(ctx context.Context, cmd IngestCommand) (*IngestResult, error) {
	doc := &Document{
		Filename:         cmd.Filename,
		OriginalFilename: cmd.OriginalFilename,
		FilePath:         cmd.FilePath,
		FileSize:         cmd.FileSize,
		ContentHash:      cmd.ContentHash,
		Scope:            cmd.Scope,
		UploadedBy:       cmd.UploadedBy,
		Status:           lifecycle.StatusPending,
	}
	t := &task.Task{
		OwnerID:         cmd.UploadedBy,
		Type:            task.TypeDocumentIngestion,
		Filename:        cmd.OriginalFilename,
		Status:          lifecycle.StatusQueued,
		ProgressMessage: "Queued",
	}

	if err := s.repo.CreateWithTask(ctx, doc, t); err != nil {
		return nil, err
	}
	t.DocumentID = doc.ID

	payload, _ := json.Marshal(IngestPayload{
		TaskID:        t.ID,
		DocumentID:    doc.ID,
		Path:          doc.FilePath,
		Filename:      doc.OriginalFilename,
		Scope:         doc.Scope,
		OwnerID:       doc.UploadedBy,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicIngestTask, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "task_id", t.ID)
		if failErr := s.tasks.MarkFailed(ctx, t.ID, "failed to enqueue ingestion"); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark task failed after publish error", "error", failErr, "task_id", t.ID)
		}
		if failErr := s.repo.MarkFailed(ctx, doc.ID, "failed to enqueue ingestion"); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark document failed after publish error", "error", failErr, "document_id", doc.ID)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "ingestion queued", "document_id", doc.ID, "task_id", t.ID, "scope", doc.Scope)
	return &IngestResult{Document: doc, Task: t}, nil
}

// Detail is a document together with its stored chunks and, once ingestion
// completed, the summary of its active vector store record.
type Detail struct {
	Document
	Chunks         []vectorstore.Chunk `json:"chunks"`
	TotalChunks    int                 `json:"total_chunks"`
	EmbeddingModel string              `json:"embedding_model,omitempty"`
}

func (s *Service) Get(ctx context.Context, id string, ident middleware.Identity) (*Detail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(doc, ident) {
		return nil, ErrNotFound
	}

	chunks, err := s.chunks.GetChunks(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "document_id", id)
		chunks = []vectorstore.Chunk{}
	}

	detail := &Detail{
		Document:    *doc,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	}
	if doc.Status == lifecycle.StatusCompleted {
		if rec, err := s.records.GetActiveByDocument(ctx, id); err == nil {
			detail.TotalChunks = rec.ChunkCount
			detail.EmbeddingModel = rec.EmbeddingModel
		}
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, ident middleware.Identity, scope, status string) ([]Document, error) {
	ownerID := ident.UserID
	if ident.Admin {
		ownerID = 0
	}
	return s.repo.List(ctx, scope, ownerID, status)
}

// Delete removes a document: its chunks leave the vector store, its store
// record is deactivated, any in-flight task is cancelled, and the row is
// soft deleted. Deleting an already deleted document reports ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string, ident middleware.Identity) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !visible(doc, ident) {
		return ErrNotFound
	}
	if doc.Scope == ScopeGlobal && !ident.Admin {
		return ErrNotFound
	}

	if err := s.tasks.CancelActiveForDocument(ctx, id); err != nil {
		return err
	}
	if err := s.chunks.DeleteChunksByDocumentID(ctx, id); err != nil {
		return err
	}
	if err := s.records.DeactivateByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "document deleted", "document_id", id)
	return nil
}

func visible(doc *Document, ident middleware.Identity) bool {
	if ident.Admin || doc.Scope == ScopeGlobal {
		return true
	}
	return doc.UploadedBy == ident.UserID
}
