package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"paperbase"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"paperbase"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	DoclingURL string `envconfig:"DOCLING_URL" default:"http://docling:8000"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI            bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker   bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	IngestionConcurrency int    `envconfig:"INGESTION_CONCURRENCY" default:"4"`
	MigrationPath        string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel       string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"PAPERBASE_UPLOAD_DIR" default:"./uploads"`

	// Recovery sweep: tasks stuck in processing longer than the stale
	// timeout are reclaimed on the next sweep tick.
	StaleTaskTimeoutMinutes int `envconfig:"STALE_TASK_TIMEOUT_MINUTES" default:"30"`
	SweepIntervalSeconds    int `envconfig:"SWEEP_INTERVAL_SECONDS" default:"60"`
	TaskRetentionDays       int `envconfig:"TASK_RETENTION_DAYS" default:"30"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.IngestionConcurrency < 1 {
		return fmt.Errorf("%w: INGESTION_CONCURRENCY must be >= 1", ErrMissingRequired)
	}
	if c.StaleTaskTimeoutMinutes < 1 {
		return fmt.Errorf("%w: STALE_TASK_TIMEOUT_MINUTES must be >= 1", ErrMissingRequired)
	}
	return nil
}
