package worker_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"paperbase/apps/backend/features/document"
	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/adapter/docling"
	"paperbase/apps/backend/internal/text"
	"paperbase/apps/backend/internal/vectorstore"
)

// Mocks

type MockTaskRepo struct{ mock.Mock }

func (m *MockTaskRepo) Get(ctx context.Context, id string) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepo) List(ctx context.Context, ownerID int, all bool) ([]task.Task, error) {
	args := m.Called(ctx, ownerID, all)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepo) Claim(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskRepo) SetProgress(ctx context.Context, id, message string) error {
	return m.Called(ctx, id, message).Error(0)
}

func (m *MockTaskRepo) MarkCompleted(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

func (m *MockTaskRepo) MarkCancelled(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskRepo) CancelActiveForDocument(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

func (m *MockTaskRepo) FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]task.Task, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepo) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type MockDocumentRepo struct{ mock.Mock }

func (m *MockDocumentRepo) CreateWithTask(ctx context.Context, doc *document.Document, t *task.Task) error {
	return m.Called(ctx, doc, t).Error(0)
}

func (m *MockDocumentRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context, scope string, ownerID int, status string) ([]document.Document, error) {
	args := m.Called(ctx, scope, ownerID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockDocumentRepo) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepo) MarkProcessing(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepo) MarkCompleted(ctx context.Context, id, vectorStorePath, language string, pageCount int) error {
	return m.Called(ctx, id, vectorStorePath, language, pageCount).Error(0)
}

func (m *MockDocumentRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

func (m *MockDocumentRepo) MarkCancelled(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepo) CountVisible(ctx context.Context, ownerID int) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentRepo) DistinctLanguages(ctx context.Context, ownerID int) ([]string, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, path string) (*docling.Extraction, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docling.Extraction), args.Error(1)
}

type MockPersister struct{ mock.Mock }

func (m *MockPersister) Persist(ctx context.Context, doc vectorstore.Document, chunks []text.Chunk) (*vectorstore.Record, error) {
	args := m.Called(ctx, doc, chunks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorstore.Record), args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) StoreChunk(ctx context.Context, chunk vectorstore.Chunk) error {
	return m.Called(ctx, chunk).Error(0)
}

func (m *MockChunkStore) DeleteChunksByDocumentID(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

func (m *MockChunkStore) GetChunks(ctx context.Context, documentID string) ([]vectorstore.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.Chunk), args.Error(1)
}

func (m *MockChunkStore) CountChunks(ctx context.Context, scope string, ownerID int) (int, error) {
	args := m.Called(ctx, scope, ownerID)
	return args.Int(0), args.Error(1)
}

type MockRecordRepo struct{ mock.Mock }

func (m *MockRecordRepo) Replace(ctx context.Context, rec *vectorstore.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRecordRepo) GetActiveByDocument(ctx context.Context, documentID string) (*vectorstore.Record, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vectorstore.Record), args.Error(1)
}

func (m *MockRecordRepo) DeactivateByDocument(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}
