package vectorstore

import (
	"context"
	"errors"
	"time"
)

// ErrEmbedding marks failures of the embedding capability itself.
var ErrEmbedding = errors.New("embedding failed")

// ErrStorage marks failures to persist chunks or the store record.
var ErrStorage = errors.New("vector store persistence failed")

// Record binds a document to its persisted embedding store. A document has
// at most one active record; re-ingestion writes a new record and
// deactivates the old one, never mutating a record in place.
type Record struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	StorePath      string    `json:"store_path"`
	ChunkCount     int       `json:"chunk_count"`
	EmbeddingModel string    `json:"embedding_model"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type Repository interface {
	// Replace deactivates any prior records for the document and inserts
	// rec as the single active one, atomically.
	Replace(ctx context.Context, rec *Record) error
	GetActiveByDocument(ctx context.Context, documentID string) (*Record, error)
	DeactivateByDocument(ctx context.Context, documentID string) error
}

// Chunk is one embedded span of a document, as written to the chunk store.
type Chunk struct {
	Content    string
	Vector     []float32
	DocumentID string
	Scope      string
	OwnerID    int
	ChunkIndex int
	Page       int
	Language   string
	Filename   string
}

// Embedder is the embedding capability. The model identifier selects which
// named model produces the vectors.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// ChunkStore is the physical chunk storage (Weaviate in production).
type ChunkStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
	DeleteChunksByDocumentID(ctx context.Context, documentID string) error
	GetChunks(ctx context.Context, documentID string) ([]Chunk, error)
	CountChunks(ctx context.Context, scope string, ownerID int) (int, error)
}
