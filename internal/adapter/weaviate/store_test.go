package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "paperbase/apps/backend/internal/adapter/weaviate"
	"paperbase/apps/backend/internal/vectorstore"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestStore_StoreChunk(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		props := body["properties"].(map[string]interface{})
		assert.Equal(t, "test content", props["content"])
		assert.Equal(t, "doc-1", props["documentId"])
		assert.Equal(t, "user", props["scope"])
		assert.Equal(t, 42.0, props["ownerId"])
		assert.Equal(t, 3.0, props["page"])
		assert.Equal(t, "paper.pdf", props["filename"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "1"})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunk := vectorstore.Chunk{
		Content:    "test content",
		DocumentID: "doc-1",
		Scope:      "user",
		OwnerID:    42,
		ChunkIndex: 0,
		Page:       3,
		Language:   "english",
		Filename:   "paper.pdf",
		Vector:     []float32{0.1, 0.2},
	}
	err := store.StoreChunk(context.Background(), chunk)
	assert.NoError(t, err)
}

func TestStore_DeleteChunksByDocumentID(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		match := body["match"].(map[string]interface{})
		where := match["where"].(map[string]interface{})
		assert.Equal(t, "doc-1", where["valueString"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteChunksByDocumentID(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestStore_GetChunks(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"content":    "chunk content",
							"documentId": "doc-1",
							"scope":      "global",
							"chunkIndex": 0.0,
							"page":       2.0,
							"language":   "german",
							"filename":   "bericht.pdf",
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunks, err := store.GetChunks(context.Background(), "doc-1")
	assert.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "chunk content", chunks[0].Content)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, 2, chunks[0].Page)
	assert.Equal(t, "german", chunks[0].Language)
}

func TestStore_CountChunks_GlobalScope(t *testing.T) {
	var gotQuery string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gotQuery, _ = body["query"].(string)

		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{
								"count": 42.0,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountChunks(context.Background(), "global", 0)
	assert.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.True(t, strings.Contains(gotQuery, "scope"))
	assert.False(t, strings.Contains(gotQuery, "ownerId"))
}

func TestStore_CountChunks_UserScopeFiltersOwner(t *testing.T) {
	var gotQuery string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gotQuery, _ = body["query"].(string)

		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{
								"count": 7.0,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountChunks(context.Background(), "user", 42)
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.True(t, strings.Contains(gotQuery, "ownerId"))
}

func TestStore_CountChunks_EmptyClass(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"DocumentChunk": []interface{}{},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountChunks(context.Background(), "global", 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}
