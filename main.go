package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"paperbase/apps/backend/internal/app"
	"paperbase/apps/backend/internal/config"
	"paperbase/apps/backend/internal/logger"

	"github.com/nsqio/go-nsq"
)

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	application, err := app.New(cfg, deps.DB, deps.ChunkStore, deps.NSQProducer, logger)
	if err != nil {
		return err
	}

	if cfg.EnableIngestWorker {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxInFlight = cfg.IngestionConcurrency

		consumer, err := nsq.NewConsumer(config.TopicIngestTask, config.ChannelIngestWorkers, nsqCfg)
		if err != nil {
			return err
		}
		consumer.AddConcurrentHandlers(application.IngestConsumer, cfg.IngestionConcurrency)

		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Warn("failed to connect to nsqlookupd, falling back to nsqd", "error", err)
			if err := consumer.ConnectToNSQD(cfg.NSQDHost); err != nil {
				return err
			}
		}
		defer consumer.Stop()
		slog.Info("ingest worker started", "concurrency", cfg.IngestionConcurrency)

		go application.Sweeper.Run(ctx)
	}

	if cfg.EnableAPI {
		return application.Run(ctx)
	}

	<-ctx.Done()
	return nil
}

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
