package settings

import (
	"context"
)

// Settings are the runtime-editable knobs: the embedding API key and the
// model recorded on newly ingested documents. Stored as a single row so an
// operator can rotate the key without redeploying.
type Settings struct {
	ID             int    `json:"-"`
	GeminiAPIKey   string `json:"gemini_api_key"`
	EmbeddingModel string `json:"embedding_model"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	return s.repo.Update(ctx, set)
}
