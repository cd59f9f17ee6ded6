package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"strings"

	"docdex/internal/chunker"
	"docdex/internal/config"
	"docdex/internal/http"
	"docdex/internal/llm"
	"docdex/internal/search"
	"docdex/internal/storage"
	"docdex/internal/syncer"
	"docdex/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API keeps registered folders of documents indexed in a vector store
// and serves hybrid semantic search over their contents.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Docdex API
//   description: |
//     Folder indexing and retrieval API. Agents register local folders; a
//     background sync engine chunks and embeds their files into Qdrant, and
//     the search endpoint serves fused dense and lexical retrieval over the
//     indexed chunks.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	level := parseLogLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{
		Level: level,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", level.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	folderRepo := storage.NewFolderRepo(db)
	fileRepo := storage.NewFileRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingSize)

	// Validate embedding client vector size (fail-fast)
	embedClient := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingSize, cfg.EmbedRatePerSec)
	if err := embedClient.Probe(ctx); err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	slog.Info("Embedding client validated", "vector_size", cfg.EmbeddingSize)

	// Sync workers and search share one embedder; the cache absorbs repeat
	// chunks across cycles and repeat queries.
	embedder := llm.NewCachedEmbedder(embedClient, cfg.EmbedCacheSize, cfg.EmbedCacheTTL)

	tokenChunker, err := chunker.NewTokenChunker()
	if err != nil {
		log.Fatalf("Failed to initialize token chunker: %v", err)
	}

	// Create search engine
	searchEngine := search.NewEngine(embedder, vectorStore, folderRepo, cfg.QdrantCollection)

	// Create sync engine
	syncEngine, err := syncer.NewEngine(folderRepo, fileRepo, tokenChunker, embedder, vectorStore, cfg.QdrantCollection, syncer.Options{
		Enabled:      cfg.SyncEnabled,
		ScanInterval: cfg.SyncInterval,
		Workers:      cfg.SyncWorkers,
		MaxDepth:     cfg.SyncMaxDepth,
		MaxEntries:   cfg.SyncMaxEntries,
		Watch:        cfg.WatchEnabled,
	})
	if err != nil {
		log.Fatalf("Failed to create sync engine: %v", err)
	}
	slog.Info("Sync engine initialized", "enabled", cfg.SyncEnabled, "workers", cfg.SyncWorkers, "interval", cfg.SyncInterval.String())

	// Create router with dependencies
	deps := &http.Deps{
		SearchEngine: searchEngine,
		SyncService:  syncEngine,
		Folders:      folderRepo,
		DB:           db,
		VectorStore:  vectorStore,
		Collection:   cfg.QdrantCollection,
	}
	router := http.NewRouter(deps)

	// Start the sync engine in background after router is ready. Folders
	// stranded in syncing by a previous abrupt exit are recovered during
	// engine startup.
	go func() {
		if err := syncEngine.Run(ctx); err != nil {
			slog.Error("Sync engine stopped", "error", err)
		}
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("Embedding configuration", "base_url", cfg.EmbeddingBaseURL, "model", cfg.EmbeddingModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// parseLogLevel maps a level name to a slog.Level, defaulting to info.
func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
