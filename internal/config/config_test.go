package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var configEnvVars = []string{
	"API_PORT", "DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION",
	"EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_MODEL_NAME", "EMBEDDING_SIZE",
	"EMBED_CACHE_SIZE", "EMBED_CACHE_TTL_SECONDS", "EMBED_RATE_PER_SECOND",
	"SYNC_WORKERS", "SYNC_INTERVAL_SECONDS", "SYNC_MAX_DEPTH", "SYNC_MAX_ENTRIES",
	"WATCH_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	for _, key := range configEnvVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required fields",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingSize == 768
			},
		},
		{
			name:     "missing EMBEDDING_SIZE",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid EMBEDDING_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero EMBEDDING_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "negative EMBEDDING_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "-1")
			},
			wantErr: true,
		},
		{
			name: "default values for optional fields",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.APIPort == "9100" &&
					cfg.DBPath == "./data/docdex.db" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.QdrantCollection == "folder_chunks" &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.EmbeddingModelName == "granite-embedding-278m-multilingual" &&
					cfg.SyncWorkers == 2 &&
					cfg.SyncInterval == 300*time.Second &&
					cfg.SyncMaxDepth == 8 &&
					cfg.SyncMaxEntries == 10000 &&
					cfg.WatchEnabled &&
					cfg.EmbedCacheSize == 4096 &&
					cfg.EmbedCacheTTL == 900*time.Second
			},
		},
		{
			name: "custom optional values",
			setupEnv: func(t *testing.T) {
				tmpDir := t.TempDir()
				setEnv("EMBEDDING_SIZE", "768")
				setEnv("SYNC_WORKERS", "4")
				setEnv("SYNC_INTERVAL_SECONDS", "60")
				setEnv("WATCH_ENABLED", "false")
				customDBPath := filepath.Join(tmpDir, "custom", "db.db")
				setEnv("DB_PATH", customDBPath)
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.SyncWorkers == 4 &&
					cfg.SyncInterval == 60*time.Second &&
					!cfg.WatchEnabled &&
					filepath.Base(cfg.DBPath) == "db.db" // Just check filename, path will vary with temp dir
			},
		},
		{
			name: "invalid SYNC_WORKERS",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
				setEnv("SYNC_WORKERS", "not-a-number")
			},
			wantErr: true,
		},
		{
			name: "zero SYNC_WORKERS",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
				setEnv("SYNC_WORKERS", "0")
			},
			wantErr: true,
		},
		{
			name: "invalid SYNC_INTERVAL_SECONDS",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
				setEnv("SYNC_INTERVAL_SECONDS", "-5")
			},
			wantErr: true,
		},
		{
			name: "invalid EMBED_RATE_PER_SECOND",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_SIZE", "768")
				setEnv("EMBED_RATE_PER_SECOND", "zero")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Change to a temp directory without .env file to avoid loading it
			tmpDir := t.TempDir()
			originalWd, _ := os.Getwd()
			_ = os.Chdir(tmpDir) // Ignore error - test will fail if this doesn't work
			defer func() {
				_ = os.Chdir(originalWd) // Ignore error in cleanup
			}()

			// Clean up env vars before each test
			for _, key := range configEnvVars {
				unsetEnv(key)
			}
			// Restore original values after test
			defer func() {
				for key, value := range originalEnv {
					if value != "" {
						setEnv(key, value)
					} else {
						unsetEnv(key)
					}
				}
			}()

			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed")
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{"EMBEDDING_SIZE", "DB_PATH"}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	// Use a temporary directory for testing
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test", "db.db")

	setEnv("EMBEDDING_SIZE", "768")
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Check that directory was created
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}

	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name: "env var set",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "set-value")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name: "env var not set",
			setupEnv: func() {
				unsetEnv("TEST_ENV_VAR")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name: "empty env var uses default",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}
