package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
)

// setupTestDB creates a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func createTestFolder(t *testing.T, repo *FolderRepo, path string) *SyncFolderRecord {
	t.Helper()

	folder := &SyncFolderRecord{
		AgentID:     "agent-1",
		FolderPath:  path,
		DisplayName: filepath.Base(path),
	}
	if err := repo.Create(context.Background(), folder); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return folder
}

func TestFolderRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	if folder.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if folder.Status != StatusPending {
		t.Errorf("Create() status = %q, want %q", folder.Status, StatusPending)
	}

	got, err := repo.GetByID(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AgentID != "agent-1" || got.FolderPath != "/data/docs" || got.DisplayName != "docs" {
		t.Errorf("GetByID() = %+v, fields do not match", got)
	}
	if got.Status != StatusPending {
		t.Errorf("GetByID() status = %q, want %q", got.Status, StatusPending)
	}
	if got.LastSyncedAt != nil {
		t.Errorf("GetByID() LastSyncedAt = %v, want nil", got.LastSyncedAt)
	}
	if got.CreatedAt.IsZero() {
		t.Error("GetByID() CreatedAt should be set")
	}
}

func TestFolderRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)

	_, err := repo.GetByID(context.Background(), "does-not-exist")
	if err != ErrNotFound {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestFolderRepo_ListAllAndByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	a := createTestFolder(t, repo, "/data/a")
	b := createTestFolder(t, repo, "/data/b")

	if err := repo.MarkError(ctx, b.ID, "boom"); err != nil {
		t.Fatalf("MarkError() error = %v", err)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListAll() = %d folders, want 2", len(all))
	}

	pending, err := repo.ListByStatus(ctx, StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Errorf("ListByStatus(pending) = %d folders, want only %s", len(pending), a.ID)
	}

	failed, err := repo.ListByStatus(ctx, StatusError)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Errorf("ListByStatus(error) should return only the failed folder")
	}
	if failed[0].LastError != "boom" {
		t.Errorf("LastError = %q, want %q", failed[0].LastError, "boom")
	}
}

func TestFolderRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	fileRepo := NewFileRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	err := fileRepo.Upsert(ctx, &SyncFileRecord{
		FolderID:    folder.ID,
		RelPath:     "a.md",
		ContentHash: "hash",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.Delete(ctx, folder.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, folder.ID); err != ErrNotFound {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	// sync_files rows cascade with the folder
	files, err := fileRepo.ListByFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ListByFolder() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("ListByFolder() after folder delete = %d rows, want 0", len(files))
	}

	if err := repo.Delete(ctx, folder.ID); err != ErrNotFound {
		t.Errorf("Delete() of missing folder error = %v, want ErrNotFound", err)
	}
}

func TestFolderRepo_BeginSync(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	ok, err := repo.BeginSync(ctx, folder.ID)
	if err != nil {
		t.Fatalf("BeginSync() error = %v", err)
	}
	if !ok {
		t.Fatal("BeginSync() on pending folder should apply")
	}

	got, err := repo.GetByID(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusSyncing {
		t.Errorf("status = %q, want %q", got.Status, StatusSyncing)
	}

	// A second cycle start while syncing is a no-op.
	ok, err = repo.BeginSync(ctx, folder.ID)
	if err != nil {
		t.Fatalf("BeginSync() error = %v", err)
	}
	if ok {
		t.Error("BeginSync() while syncing should not apply")
	}

	if err := repo.MarkSynced(ctx, folder.ID, 3, 12); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	ok, err = repo.BeginSync(ctx, folder.ID)
	if err != nil {
		t.Fatalf("BeginSync() error = %v", err)
	}
	if !ok {
		t.Error("BeginSync() after synced should apply again")
	}
}

func TestFolderRepo_BeginSync_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	const triggers = 16
	var wg sync.WaitGroup
	results := make(chan bool, triggers)

	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.BeginSync(ctx, folder.ID)
			if err != nil {
				t.Errorf("BeginSync() error = %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for ok := range results {
		if ok {
			started++
		}
	}
	if started != 1 {
		t.Errorf("concurrent BeginSync() applied %d times, want exactly 1", started)
	}
}

func TestFolderRepo_MarkSyncedClearsError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	if err := repo.MarkError(ctx, folder.ID, "transient failure"); err != nil {
		t.Fatalf("MarkError() error = %v", err)
	}

	got, err := repo.GetByID(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusError || got.LastError != "transient failure" {
		t.Errorf("after MarkError: status=%q lastError=%q", got.Status, got.LastError)
	}

	if err := repo.MarkSynced(ctx, folder.ID, 5, 40); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}

	got, err = repo.GetByID(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusSynced {
		t.Errorf("status = %q, want %q", got.Status, StatusSynced)
	}
	if got.FileCount != 5 || got.ChunkCount != 40 {
		t.Errorf("counts = %d/%d, want 5/40", got.FileCount, got.ChunkCount)
	}
	if got.LastError != "" {
		t.Errorf("LastError = %q, want empty", got.LastError)
	}
	if got.LastSyncedAt == nil {
		t.Error("LastSyncedAt should be set after MarkSynced")
	}
}

func TestFolderRepo_PauseResume(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	ok, err := repo.Pause(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if !ok {
		t.Fatal("Pause() on pending folder should apply")
	}

	// Paused folders receive no cycles until resumed.
	ok, err = repo.BeginSync(ctx, folder.ID)
	if err != nil {
		t.Fatalf("BeginSync() error = %v", err)
	}
	if ok {
		t.Error("BeginSync() on paused folder should not apply")
	}

	ok, err = repo.Resume(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !ok {
		t.Fatal("Resume() on paused folder should apply")
	}

	got, err := repo.GetByID(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status after resume = %q, want %q", got.Status, StatusPending)
	}

	ok, err = repo.Resume(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if ok {
		t.Error("Resume() on non-paused folder should not apply")
	}
}

func TestFolderRepo_PauseRejectedWhileSyncing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolderRepo(db)
	ctx := context.Background()

	folder := createTestFolder(t, repo, "/data/docs")

	if ok, err := repo.BeginSync(ctx, folder.ID); err != nil || !ok {
		t.Fatalf("BeginSync() = %v, %v", ok, err)
	}

	ok, err := repo.Pause(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if ok {
		t.Error("Pause() during an active cycle should not apply")
	}
}
