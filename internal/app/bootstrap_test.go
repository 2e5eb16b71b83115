package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"

	"paperbase/apps/backend/internal/config"
)

type fakeSchemaClient struct {
	callCount int
	failUntil int
}

func (f *fakeSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	f.callCount++
	if f.callCount <= f.failUntil {
		return false, errors.New("schema error")
	}
	return true, nil
}

func (f *fakeSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return nil
}

func (f *fakeSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return &models.Class{Class: className}, nil
}

func (f *fakeSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return nil
}

func TestEnsureSchemaWithRetry_Success(t *testing.T) {
	client := &fakeSchemaClient{}
	err := ensureSchemaWithRetry(context.Background(), client, 1, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, client.callCount)
}

func TestEnsureSchemaWithRetry_Retries(t *testing.T) {
	client := &fakeSchemaClient{failUntil: 2}
	err := ensureSchemaWithRetry(context.Background(), client, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, client.callCount)
}

func TestEnsureSchemaWithRetry_Fail(t *testing.T) {
	client := &fakeSchemaClient{failUntil: 100}
	err := ensureSchemaWithRetry(context.Background(), client, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, client.callCount)
}

func TestBootstrap_ConfigurationError(t *testing.T) {
	cfg := &config.Config{
		DBHost: "invalid-host",
	}
	deps, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
}
