// Package config loads engine configuration from the environment and sets up
// logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration values.
type Config struct {
	// Persistence
	DatabaseURL string `validate:"required"`

	// Storage backend: "local" keeps files on disk, "s3" uses a bucket.
	StorageBackend string `validate:"oneof=local s3"`
	StorageRoot    string `validate:"required_if=StorageBackend local"`
	S3Bucket       string `validate:"required_if=StorageBackend s3"`
	S3Region       string

	// Provider credentials. A family without credentials can still estimate
	// costs; generating with it fails.
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaHost   string

	// Scheduler
	SchedulerInterval time.Duration `validate:"gt=0"`

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StorageBackend:    getEnv("STORAGE_BACKEND", "local"),
		StorageRoot:       getEnv("STORAGE_ROOT", "./data"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          os.Getenv("AWS_REGION"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		SchedulerInterval: getDuration("SCHEDULER_INTERVAL_SECONDS", 60*time.Second),
		LogFile:           getEnv("LOG_FILE", ""),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs <= 0 {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
