package worker

import (
	"context"

	"paperbase/apps/backend/internal/adapter/docling"
	"paperbase/apps/backend/internal/text"
	"paperbase/apps/backend/internal/vectorstore"
)

// Extractor turns a PDF on disk into page text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*docling.Extraction, error)
}

// Persister embeds and stores the chunks of a document and activates its
// store record.
type Persister interface {
	Persist(ctx context.Context, doc vectorstore.Document, chunks []text.Chunk) (*vectorstore.Record, error)
}

// Progress milestones reported on the task while an ingestion runs. Clients
// poll these verbatim.
const (
	ProgressExtracting = "Loading and extracting text from PDF..."
	ProgressChunking   = "Splitting text into chunks..."
	ProgressEmbedding  = "Creating embeddings..."
	ProgressSaving     = "Saving vector store..."
)

// Chunking parameters for ingested documents.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)
