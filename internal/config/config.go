package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort string

	DBPath string

	QdrantURL        string
	QdrantCollection string

	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingModelName string
	EmbeddingSize      int

	// Embedding client protections shared by all sync workers.
	EmbedCacheSize  int
	EmbedCacheTTL   time.Duration
	EmbedRatePerSec float64

	// Sync engine scheduling.
	SyncEnabled    bool
	SyncWorkers    int
	SyncInterval   time.Duration
	SyncMaxDepth   int
	SyncMaxEntries int
	WatchEnabled   bool

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9100"),
		DBPath:             getEnv("DB_PATH", "./data/docdex.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "folder_chunks"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	// EMBEDDING_SIZE must match the output vector size of the embeddings model.
	// If it changes, the Qdrant collection must be recreated.
	sizeStr := getEnv("EMBEDDING_SIZE", "")
	if sizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_SIZE is required")
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_SIZE must be a valid integer: %w", err)
	}
	if size <= 0 {
		return nil, fmt.Errorf("EMBEDDING_SIZE must be greater than 0")
	}
	cfg.EmbeddingSize = size

	cfg.EmbedCacheSize, err = getEnvInt("EMBED_CACHE_SIZE", 4096)
	if err != nil {
		return nil, err
	}
	cacheTTLSec, err := getEnvInt("EMBED_CACHE_TTL_SECONDS", 900)
	if err != nil {
		return nil, err
	}
	cfg.EmbedCacheTTL = time.Duration(cacheTTLSec) * time.Second

	rateStr := getEnv("EMBED_RATE_PER_SECOND", "20")
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("EMBED_RATE_PER_SECOND must be a valid number: %w", err)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("EMBED_RATE_PER_SECOND must be greater than 0")
	}
	cfg.EmbedRatePerSec = rate

	cfg.SyncEnabled = getEnv("SYNC_ENABLED", "true") == "true"

	cfg.SyncWorkers, err = getEnvInt("SYNC_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	if cfg.SyncWorkers <= 0 {
		return nil, fmt.Errorf("SYNC_WORKERS must be greater than 0")
	}

	intervalSec, err := getEnvInt("SYNC_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	if intervalSec <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL_SECONDS must be greater than 0")
	}
	cfg.SyncInterval = time.Duration(intervalSec) * time.Second

	cfg.SyncMaxDepth, err = getEnvInt("SYNC_MAX_DEPTH", 8)
	if err != nil {
		return nil, err
	}
	cfg.SyncMaxEntries, err = getEnvInt("SYNC_MAX_ENTRIES", 10000)
	if err != nil {
		return nil, err
	}
	cfg.WatchEnabled = getEnv("WATCH_ENABLED", "true") == "true"

	// Create ./data directory if it doesn't exist (for future DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
