package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"docdex/internal/storage"
	vectorstore_mocks "docdex/internal/vectorstore/mocks"
)

func newHealthTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthHandler_Healthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().CollectionExists(gomock.Any(), "docdex_chunks").Return(true, nil)

	handler := NewHealthHandler(newHealthTestDB(t), store, "docdex_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", resp.Status)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("expected database check ok, got %q", resp.Checks["database"])
	}
	if resp.Checks["vector_store"] != "ok" {
		t.Errorf("expected vector_store check ok, got %q", resp.Checks["vector_store"])
	}
	if len(resp.Issues) != 0 {
		t.Errorf("expected no issues, got %v", resp.Issues)
	}
	if resp.Timestamp == "" {
		t.Error("expected timestamp in response")
	}
}

func TestHealthHandler_VectorStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().CollectionExists(gomock.Any(), "docdex_chunks").Return(false, errors.New("connection refused"))

	handler := NewHealthHandler(newHealthTestDB(t), store, "docdex_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %q", resp.Status)
	}
	if resp.Checks["vector_store"] != "error" {
		t.Errorf("expected vector_store check error, got %q", resp.Checks["vector_store"])
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("expected database check ok, got %q", resp.Checks["database"])
	}
	if len(resp.Issues) != 1 || resp.Issues[0] != "vector_store_unavailable" {
		t.Errorf("expected vector_store_unavailable issue, got %v", resp.Issues)
	}
}

func TestHealthHandler_MissingCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().CollectionExists(gomock.Any(), "docdex_chunks").Return(false, nil)

	handler := NewHealthHandler(newHealthTestDB(t), store, "docdex_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	store.EXPECT().CollectionExists(gomock.Any(), "docdex_chunks").Return(true, nil)

	db := newHealthTestDB(t)
	db.Close()

	handler := NewHealthHandler(db, store, "docdex_chunks")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Checks["database"] != "error" {
		t.Errorf("expected database check error, got %q", resp.Checks["database"])
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	handler := NewHealthHandler(newHealthTestDB(t), store, "docdex_chunks")

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}
