package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"paperbase/apps/backend/features/document"
	"paperbase/apps/backend/features/kb"
	"paperbase/apps/backend/features/task"
	"paperbase/apps/backend/internal/adapter/docling"
	"paperbase/apps/backend/internal/adapter/gemini"
	"paperbase/apps/backend/internal/config"
	"paperbase/apps/backend/internal/middleware"
	"paperbase/apps/backend/internal/settings"
	"paperbase/apps/backend/internal/vectorstore"
	"paperbase/apps/backend/internal/worker"
)

// ChunkStore is the full chunk storage surface the app wires together.
type ChunkStore interface {
	vectorstore.ChunkStore
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	IngestConsumer *worker.IngestConsumer
	Sweeper        *worker.Sweeper

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	chunkStore ChunkStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)

	// Seed Gemini API key from environment into the settings row, once.
	if cfg.GeminiAPIKey != "" {
		ctx := context.Background()
		set, err := settingsService.Get(ctx)
		if err == nil {
			if set.GeminiAPIKey == "" {
				set.GeminiAPIKey = cfg.GeminiAPIKey
				if err := settingsService.Update(ctx, set); err != nil {
					slog.Warn("failed to seed gemini api key", "error", err)
				} else {
					slog.Info("seeded gemini api key from environment")
				}
			}
		} else {
			slog.Warn("failed to fetch settings for seeding", "error", err)
		}
	}

	settingsHandler := settings.NewHandler(settingsService)

	// Repositories
	taskRepo := task.NewPostgresRepo(db)
	documentRepo := document.NewPostgresRepo(db)
	recordRepo := vectorstore.NewPostgresRepo(db)

	// Feature: Document
	documentService := document.NewService(documentRepo, taskRepo, taskPub, chunkStore, recordRepo)
	documentHandler := document.NewHandler(documentService, cfg.UploadDir, int(cfg.MaxUploadSizeMB))

	// Feature: Task
	retention := time.Duration(cfg.TaskRetentionDays) * 24 * time.Hour
	taskService := task.NewService(taskRepo)
	taskHandler := task.NewHandler(taskService, retention)

	// Feature: KB status
	kbHandler := kb.NewHandler(documentRepo, chunkStore)

	// Ingestion pipeline
	embedder := gemini.NewDynamicEmbedder(settingsService)
	manager := vectorstore.NewManager(embedder, chunkStore, recordRepo, cfg.EmbeddingModel, logger)
	extractor := docling.NewClient(cfg.DoclingURL)
	ingestConsumer := worker.NewIngestConsumer(taskRepo, documentRepo, extractor, manager, chunkStore, recordRepo)

	sweeper := worker.NewSweeper(
		taskRepo, documentRepo, recordRepo,
		time.Duration(cfg.StaleTaskTimeoutMinutes)*time.Minute,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		retention,
	)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-User-Role")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	chain := func(next http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.RequestIdentity(enableCORS(next)))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", chain(documentHandler.Upload))
	mux.Handle("GET /documents", chain(documentHandler.List))
	mux.Handle("GET /documents/{id}", chain(documentHandler.Get))
	mux.Handle("DELETE /documents/{id}", chain(documentHandler.Delete))

	mux.Handle("GET /tasks", chain(taskHandler.List))
	mux.Handle("GET /tasks/{id}", chain(taskHandler.Get))
	mux.Handle("POST /tasks/{id}/cancel", chain(taskHandler.Cancel))
	mux.Handle("POST /tasks/cleanup", chain(taskHandler.Cleanup))

	mux.Handle("GET /kb/status", chain(kbHandler.GetStatus))

	mux.Handle("GET /settings", chain(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", chain(settingsHandler.UpdateSettings))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:        mux,
		IngestConsumer: ingestConsumer,
		Sweeper:        sweeper,
		port:           cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
