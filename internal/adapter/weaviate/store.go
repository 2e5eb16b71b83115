package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"paperbase/apps/backend/internal/vectorstore"
)

const className = "DocumentChunk"

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, chunk vectorstore.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]interface{}{
			"content":    chunk.Content,
			"documentId": chunk.DocumentID,
			"scope":      chunk.Scope,
			"ownerId":    chunk.OwnerID,
			"chunkIndex": chunk.ChunkIndex,
			"page":       chunk.Page,
			"language":   chunk.Language,
			"filename":   chunk.Filename,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

func (s *Store) DeleteChunksByDocumentID(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

func (s *Store) GetChunks(ctx context.Context, documentID string) ([]vectorstore.Chunk, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "scope"},
		{Name: "ownerId"},
		{Name: "chunkIndex"},
		{Name: "page"},
		{Name: "language"},
		{Name: "filename"},
	}

	where := filters.Where().
		WithOperator(filters.Equal).
		WithPath([]string{"documentId"}).
		WithValueString(documentID)

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithLimit(1000).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var chunks []vectorstore.Chunk
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rawChunks, ok := data[className].([]interface{}); ok {
			for _, c := range rawChunks {
				props, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				chunk := vectorstore.Chunk{}
				if content, ok := props["content"].(string); ok {
					chunk.Content = content
				}
				if id, ok := props["documentId"].(string); ok {
					chunk.DocumentID = id
				}
				if scope, ok := props["scope"].(string); ok {
					chunk.Scope = scope
				}
				if owner, ok := props["ownerId"].(float64); ok {
					chunk.OwnerID = int(owner)
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					chunk.ChunkIndex = int(idx)
				}
				if page, ok := props["page"].(float64); ok {
					chunk.Page = int(page)
				}
				if lang, ok := props["language"].(string); ok {
					chunk.Language = lang
				}
				if name, ok := props["filename"].(string); ok {
					chunk.Filename = name
				}
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks, nil
}

// CountChunks aggregates the number of stored chunks visible in a scope.
// For the user scope the count is restricted to the owner's chunks.
func (s *Store) CountChunks(ctx context.Context, scope string, ownerID int) (int, error) {
	where := filters.Where().
		WithPath([]string{"scope"}).
		WithOperator(filters.Equal).
		WithValueString(scope)

	if scope == "user" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{
				where,
				filters.Where().
					WithPath([]string{"ownerId"}).
					WithOperator(filters.Equal).
					WithValueInt(int64(ownerID)),
			})
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithWhere(where).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if groups, ok := data[className].([]interface{}); ok && len(groups) > 0 {
			if group, ok := groups[0].(map[string]interface{}); ok {
				if meta, ok := group["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
