package search

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks docdex/internal/search Engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"docdex/internal/contextutil"
	"docdex/internal/llm"
	"docdex/internal/storage"
	"docdex/internal/vectorstore"
)

const (
	// DefaultTopK caps results when the request does not specify one.
	DefaultTopK = 8
	// MaxTopK bounds how many hits a single query may request.
	MaxTopK = 50

	// Candidate lists run deeper than the final cut so fusion and
	// diversification have material to work with.
	candidatePerHit = 4
	candidateFloor  = 32
)

// Engine answers hybrid retrieval queries.
type Engine interface {
	// Search runs dense and lexical retrieval concurrently, fuses the two
	// lists, and diversifies the top results.
	Search(ctx context.Context, req Request) (Response, error)
}

type searchEngine struct {
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	folders    storage.FolderStore
	collection string
}

// NewEngine creates a hybrid search engine over the given collection.
func NewEngine(embedder llm.Embedder, store vectorstore.VectorStore, folders storage.FolderStore, collection string) Engine {
	return &searchEngine{
		embedder:   embedder,
		store:      store,
		folders:    folders,
		collection: collection,
	}
}

// Search runs the full retrieval pipeline. One failed retrieval path
// degrades the query to the surviving list; the query fails only when both
// paths fail.
func (e *searchEngine) Search(ctx context.Context, req Request) (Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, fmt.Errorf("query is required")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	lambda := req.Lambda
	if lambda <= 0 {
		lambda = DefaultMMRLambda
	}

	candidates := topK * candidatePerHit
	if candidates < candidateFloor {
		candidates = candidateFloor
	}

	logger.InfoContext(ctx, "search started", "query_len", len(query), "top_k", topK, "folders", len(req.FolderIDs))

	var (
		denseHits, lexicalHits []vectorstore.SearchResult
		denseErr, lexicalErr   error
	)

	// The two candidate fetches are independent; issue them concurrently
	// and join before fusion. Failures are stashed rather than returned so
	// one path's failure never cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectors, err := e.embedder.EmbedTexts(gctx, []string{query})
		if err != nil {
			denseErr = fmt.Errorf("failed to embed query: %w", err)
			return nil
		}
		if len(vectors) == 0 {
			denseErr = fmt.Errorf("no embedding returned for query")
			return nil
		}
		hits, err := e.store.QueryDense(gctx, e.collection, vectors[0], candidates, req.FolderIDs)
		if err != nil {
			denseErr = fmt.Errorf("failed to query dense: %w", err)
			return nil
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.store.QueryLexical(gctx, e.collection, query, candidates, req.FolderIDs)
		if err != nil {
			lexicalErr = fmt.Errorf("failed to query lexical: %w", err)
			return nil
		}
		lexicalHits = hits
		return nil
	})
	_ = g.Wait()

	if denseErr != nil && lexicalErr != nil {
		return Response{}, errors.Join(denseErr, lexicalErr)
	}
	if denseErr != nil {
		logger.WarnContext(ctx, "dense retrieval failed, serving lexical hits only", "error", denseErr)
	}
	if lexicalErr != nil {
		logger.WarnContext(ctx, "lexical retrieval failed, serving dense hits only", "error", lexicalErr)
	}

	fused := FuseRanked(denseHits, lexicalHits, FusionOptions{})
	diversified := Diversify(fused, lambda, topK)

	folderPaths := e.folderPaths(ctx)

	hits := make([]Hit, 0, len(diversified))
	for _, fusedHit := range diversified {
		hits = append(hits, newHit(fusedHit, folderPaths))
	}

	logger.InfoContext(ctx, "search completed", "dense", len(denseHits), "lexical", len(lexicalHits), "hits", len(hits))
	return Response{Hits: hits}, nil
}

// folderPaths maps folder IDs to absolute paths for hit enrichment. Lookup
// failure degrades to hits without absolute paths rather than failing the
// query.
func (e *searchEngine) folderPaths(ctx context.Context) map[string]string {
	folders, err := e.folders.ListAll(ctx)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to list folders for path mapping", "error", err)
		return nil
	}
	paths := make(map[string]string, len(folders))
	for _, folder := range folders {
		paths[folder.ID] = folder.FolderPath
	}
	return paths
}

func newHit(fused FusedHit, folderPaths map[string]string) Hit {
	meta := fused.Hit.Meta
	hit := Hit{
		ID:         fused.Hit.PointID,
		Score:      fused.Score,
		Text:       metaString(meta, "text"),
		Title:      metaString(meta, "title"),
		FolderID:   metaString(meta, "folder_id"),
		RelPath:    metaString(meta, "rel_path"),
		ChunkIndex: metaInt(meta, "chunk_index"),
		StartLine:  metaInt(meta, "start_line"),
		EndLine:    metaInt(meta, "end_line"),
	}
	if folderPath, ok := folderPaths[hit.FolderID]; ok && hit.RelPath != "" {
		hit.FilePath = filepath.Join(folderPath, hit.RelPath)
	}
	return hit
}

// metaString reads a string payload field, returning "" when absent.
func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}

// metaInt reads a numeric payload field. Qdrant payloads round-trip
// integers as int64; JSON-sourced values may arrive as float64.
func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
