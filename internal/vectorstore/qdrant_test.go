package vectorstore

import (
	"context"
	"net/url"
	"strconv"
	"testing"
)

// TestNewQdrantStore_URLParsing tests URL parsing logic without creating a real client.
// This avoids connection warnings in unit tests.
func TestNewQdrantStore_URLParsing(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantErr:  false,
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://localhost:9000",
			wantErr:  false,
			wantHost: "localhost",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantErr:  false,
			wantHost: "localhost",
			wantPort: 6334, // Default
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantErr:  false,
			wantHost: "localhost", // Defaults to localhost
			wantPort: 6334,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsedURL, err := url.Parse(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected URL parsing to fail for invalid URL")
				}
				return
			}

			if err != nil {
				t.Fatalf("Failed to parse URL: %v", err)
			}

			// Mirror the URL parsing logic NewQdrantStore uses
			host := parsedURL.Hostname()
			if host == "" {
				host = "localhost"
			}

			port := 6334 // Default gRPC port
			if parsedURL.Port() != "" {
				httpPort, err := strconv.Atoi(parsedURL.Port())
				if err == nil {
					port = httpPort + 1
				}
			}

			if host != tt.wantHost {
				t.Errorf("Host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("Port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

// TestNewQdrantStore_InvalidURL tests that invalid URLs return errors.
func TestNewQdrantStore_InvalidURL(t *testing.T) {
	_, err := NewQdrantStore("://invalid")
	if err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_Upsert_EmptyPoints(t *testing.T) {
	// Empty input returns before the client is touched.
	store := &QdrantStore{}

	err := store.Upsert(context.Background(), "test-collection", []Point{})
	if err != nil {
		t.Errorf("Upsert() with empty points should return early without error, got: %v", err)
	}
}

func TestQdrantStore_QueryDense_InvalidK(t *testing.T) {
	// Validation fails before the client is touched.
	store := &QdrantStore{}
	ctx := context.Background()

	_, err := store.QueryDense(ctx, "test-collection", []float32{1.0, 2.0}, 0, nil)
	if err == nil {
		t.Error("QueryDense() with k=0 should return error")
	}

	_, err = store.QueryDense(ctx, "test-collection", []float32{1.0, 2.0}, -1, nil)
	if err == nil {
		t.Error("QueryDense() with k=-1 should return error")
	}
}

func TestQdrantStore_QueryLexical_InvalidK(t *testing.T) {
	store := &QdrantStore{}

	_, err := store.QueryLexical(context.Background(), "test-collection", "cache", 0, nil)
	if err == nil {
		t.Error("QueryLexical() with k=0 should return error")
	}
}

func TestQdrantStore_QueryLexical_NoUsableTerms(t *testing.T) {
	// Stopword-only and empty queries resolve to an empty result without
	// touching the client.
	store := &QdrantStore{}
	ctx := context.Background()

	tests := []string{"", "   ", "the and of", "!!! ,,,"}
	for _, query := range tests {
		results, err := store.QueryLexical(ctx, "test-collection", query, 5, nil)
		if err != nil {
			t.Errorf("QueryLexical(%q) error = %v, want nil", query, err)
		}
		if len(results) != 0 {
			t.Errorf("QueryLexical(%q) = %d results, want 0", query, len(results))
		}
	}
}

func TestQdrantStore_DeleteByFolder_RequiresID(t *testing.T) {
	store := &QdrantStore{}

	err := store.DeleteByFolder(context.Background(), "test-collection", "")
	if err == nil {
		t.Error("DeleteByFolder() with empty folder ID should return error")
	}
}

func TestQdrantStore_DeleteByFile_RequiresIDAndPath(t *testing.T) {
	store := &QdrantStore{}
	ctx := context.Background()

	if err := store.DeleteByFile(ctx, "test-collection", "", "a.md"); err == nil {
		t.Error("DeleteByFile() with empty folder ID should return error")
	}
	if err := store.DeleteByFile(ctx, "test-collection", "folder-1", ""); err == nil {
		t.Error("DeleteByFile() with empty rel path should return error")
	}
}

func TestFolderFilter(t *testing.T) {
	if folderFilter(nil) != nil {
		t.Error("folderFilter(nil) should return nil")
	}
	if folderFilter([]string{}) != nil {
		t.Error("folderFilter(empty) should return nil")
	}

	filter := folderFilter([]string{"f1", "f2"})
	if filter == nil {
		t.Fatal("folderFilter() should build a filter for non-empty IDs")
	}
	if len(filter.Must) != 1 {
		t.Errorf("folderFilter() Must conditions = %d, want 1", len(filter.Must))
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	result := convertPayloadToMap(nil)
	if result == nil {
		t.Error("convertPayloadToMap() should return empty map, not nil")
	}
	if len(result) != 0 {
		t.Errorf("convertPayloadToMap() with nil should return empty map, got %d items", len(result))
	}
}
