package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DatabaseURL is optional: without it the service runs on the in-memory
	// knowledge store, which is enough for demos and tests.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	ZhipuAPIKey    string `envconfig:"ZHIPU_API_KEY"`
	ZhipuBaseURL   string `envconfig:"ZHIPU_BASE_URL"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"embedding-3"`
	EmbeddingDims  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"glm-4-flash"`
	VisionModel    string `envconfig:"VISION_MODEL" default:"glm-4v-flash"`

	SimilarityThreshold float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.3"`
	TopK                int           `envconfig:"TOP_K" default:"5"`
	RespondTimeout      time.Duration `envconfig:"RESPOND_TIMEOUT" default:"60s"`
	CoalesceInterval    time.Duration `envconfig:"COALESCE_INTERVAL" default:"30ms"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"smartservice-media"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SMARTSERVICE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasZhipu() bool {
	return c.ZhipuAPIKey != ""
}
