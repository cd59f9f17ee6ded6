package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_file_store.go -package=mocks docdex/internal/storage FileStore

import (
	"context"
	"database/sql"
	"fmt"
)

// FileStore defines the interface for per-file sync bookkeeping.
type FileStore interface {
	// ListByFolder returns every tracked file of a folder.
	ListByFolder(ctx context.Context, folderID string) ([]*SyncFileRecord, error)
	// Upsert inserts or replaces the bookkeeping row for a file path.
	Upsert(ctx context.Context, file *SyncFileRecord) error
	// Delete removes the row for a file path.
	Delete(ctx context.Context, folderID, relPath string) error
}

// FileRepo provides methods for sync file operations.
// It implements the FileStore interface.
type FileRepo struct {
	db *sql.DB
}

// NewFileRepo creates a new FileRepo.
func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

// ListByFolder returns every tracked file of a folder ordered by path.
func (r *FileRepo) ListByFolder(ctx context.Context, folderID string) ([]*SyncFileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT folder_id, rel_path, content_hash, mtime_nanos, size_bytes,
		 chunk_count, last_indexed_at, last_error
		 FROM sync_files WHERE folder_id = ? ORDER BY rel_path`,
		folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*SyncFileRecord
	for rows.Next() {
		var file SyncFileRecord
		err := rows.Scan(
			&file.FolderID, &file.RelPath, &file.ContentHash, &file.MTimeNanos,
			&file.SizeBytes, &file.ChunkCount, &file.LastIndexedAt, &file.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}

// Upsert inserts or replaces the bookkeeping row for a file path.
func (r *FileRepo) Upsert(ctx context.Context, file *SyncFileRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_files (folder_id, rel_path, content_hash, mtime_nanos,
		 size_bytes, chunk_count, last_indexed_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
		 ON CONFLICT (folder_id, rel_path) DO UPDATE SET
		 content_hash = excluded.content_hash, mtime_nanos = excluded.mtime_nanos,
		 size_bytes = excluded.size_bytes, chunk_count = excluded.chunk_count,
		 last_indexed_at = CURRENT_TIMESTAMP, last_error = excluded.last_error`,
		file.FolderID, file.RelPath, file.ContentHash, file.MTimeNanos,
		file.SizeBytes, file.ChunkCount, file.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

// Delete removes the row for a file path.
func (r *FileRepo) Delete(ctx context.Context, folderID, relPath string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_files WHERE folder_id = ? AND rel_path = ?`,
		folderID, relPath,
	)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
