package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"paperbase/apps/backend/internal/text"
)

// Document carries the metadata the manager stamps onto every chunk.
type Document struct {
	ID       string
	Scope    string
	OwnerID  int
	Language string
	Filename string
}

// Manager owns the persistence path of an ingestion run: embed each chunk,
// write it to the chunk store, then register the active store record.
type Manager struct {
	embedder Embedder
	chunks   ChunkStore
	records  Repository
	model    string
	logger   *slog.Logger
}

func NewManager(embedder Embedder, chunks ChunkStore, records Repository, model string, logger *slog.Logger) *Manager {
	return &Manager{
		embedder: embedder,
		chunks:   chunks,
		records:  records,
		model:    model,
		logger:   logger,
	}
}

// StorePath names the location of a document's chunks inside the store.
func StorePath(documentID string) string {
	return fmt.Sprintf("weaviate://DocumentChunk/%s", documentID)
}

// Persist embeds and stores the chunks of one document and activates its
// store record. Any chunks from an earlier run are removed first, so a
// retried ingestion never leaves duplicates behind. Embedding failures wrap
// ErrEmbedding, storage failures wrap ErrStorage.
func (m *Manager) Persist(ctx context.Context, doc Document, chunks []text.Chunk) (*Record, error) {
	if err := m.chunks.DeleteChunksByDocumentID(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("%w: clearing prior chunks: %v", ErrStorage, err)
	}

	for _, c := range chunks {
		vector, err := m.embedder.Embed(ctx, c.Content, m.model)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrEmbedding, c.Index, err)
		}

		err = m.chunks.StoreChunk(ctx, Chunk{
			Content:    c.Content,
			Vector:     vector,
			DocumentID: doc.ID,
			Scope:      doc.Scope,
			OwnerID:    doc.OwnerID,
			ChunkIndex: c.Index,
			Page:       c.Page,
			Language:   doc.Language,
			Filename:   doc.Filename,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrStorage, c.Index, err)
		}
	}

	rec := &Record{
		DocumentID:     doc.ID,
		StorePath:      StorePath(doc.ID),
		ChunkCount:     len(chunks),
		EmbeddingModel: m.model,
	}
	if err := m.records.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: recording store: %v", ErrStorage, err)
	}

	m.logger.InfoContext(ctx, "vector store persisted",
		"document_id", doc.ID, "chunks", rec.ChunkCount, "store_path", rec.StorePath)
	return rec, nil
}
