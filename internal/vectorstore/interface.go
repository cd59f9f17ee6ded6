package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks docdex/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a single hit from a dense or lexical query.
// Vec is populated by dense queries so callers can diversify results
// without fetching the points a second time; lexical hits leave it nil.
type SearchResult struct {
	PointID string
	Score   float32
	Vec     []float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// QueryDense performs a cosine similarity search. When folderIDs is
	// non-empty, hits are restricted to those folders.
	QueryDense(ctx context.Context, collection string, query []float32, k int, folderIDs []string) ([]SearchResult, error)

	// QueryLexical matches query terms against chunk text and returns the
	// top k hits by term frequency. When folderIDs is non-empty, hits are
	// restricted to those folders.
	QueryLexical(ctx context.Context, collection, query string, k int, folderIDs []string) ([]SearchResult, error)

	// DeleteByFolder removes every point belonging to a folder.
	DeleteByFolder(ctx context.Context, collection, folderID string) error

	// DeleteByFile removes every point belonging to one file of a folder.
	DeleteByFile(ctx context.Context, collection, folderID, relPath string) error

	// EnsureCollection creates the collection and its payload indexes when
	// missing, or validates the vector size when present.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
