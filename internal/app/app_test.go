package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	wstore "paperbase/apps/backend/internal/adapter/weaviate"
	"paperbase/apps/backend/internal/config"
)

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wClient, err := weaviate.NewClient(weaviate.Config{
		Host:   server.URL[7:],
		Scheme: "http",
	})
	assert.NoError(t, err)
	chunkStore := wstore.NewStore(wClient)

	producer, err := nsq.NewProducer("localhost:4150", nsq.NewConfig())
	assert.NoError(t, err)

	appCfg := &config.Config{
		ServerPort:              8081,
		UploadDir:               t.TempDir(),
		MaxUploadSizeMB:         50,
		StaleTaskTimeoutMinutes: 30,
		SweepIntervalSeconds:    60,
		TaskRetentionDays:       30,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	application, err := New(appCfg, db, chunkStore, producer, logger)
	assert.NoError(t, err)
	assert.NotNil(t, application)
	assert.NotNil(t, application.Handler)
	assert.NotNil(t, application.IngestConsumer)
	assert.NotNil(t, application.Sweeper)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	application.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RoutesRegistered(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wClient, err := weaviate.NewClient(weaviate.Config{Host: server.URL[7:], Scheme: "http"})
	assert.NoError(t, err)

	producer, err := nsq.NewProducer("localhost:4150", nsq.NewConfig())
	assert.NoError(t, err)

	appCfg := &config.Config{ServerPort: 8081, UploadDir: t.TempDir(), MaxUploadSizeMB: 50}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	application, err := New(appCfg, db, wstore.NewStore(wClient), producer, logger)
	assert.NoError(t, err)

	// OPTIONS preflight should succeed on every registered route without
	// touching the database.
	routes := []string{"/documents", "/tasks", "/kb/status", "/settings"}
	for _, route := range routes {
		req := httptest.NewRequest("OPTIONS", route, nil)
		w := httptest.NewRecorder()
		application.Handler.ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusNotFound, w.Code, "route %s not registered", route)
	}
}
