package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_folder_store.go -package=mocks docdex/internal/storage FolderStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// FolderStore defines the interface for sync folder storage operations.
type FolderStore interface {
	// Create inserts a new folder record, generating an ID when missing.
	Create(ctx context.Context, folder *SyncFolderRecord) error
	// GetByID gets a folder by ID. Returns nil and ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*SyncFolderRecord, error)
	// ListAll returns every registered folder.
	ListAll(ctx context.Context) ([]*SyncFolderRecord, error)
	// ListByStatus returns folders currently in the given status.
	ListByStatus(ctx context.Context, status string) ([]*SyncFolderRecord, error)
	// Delete removes a folder and, by cascade, its sync_files rows.
	Delete(ctx context.Context, id string) error
	// BeginSync atomically moves a folder into syncing unless it is already
	// syncing or paused. Returns false when the transition did not apply,
	// which callers treat as a local no-op.
	BeginSync(ctx context.Context, id string) (bool, error)
	// MarkSynced completes a cycle: status=synced, counts and lastSyncedAt
	// updated, lastError cleared.
	MarkSynced(ctx context.Context, id string, fileCount, chunkCount int) error
	// MarkError completes a failed cycle: status=error with the message.
	MarkError(ctx context.Context, id string, msg string) error
	// Pause suspends a folder. Applies only when no cycle is running;
	// returns false otherwise.
	Pause(ctx context.Context, id string) (bool, error)
	// Resume moves a paused folder back to pending. Returns false when the
	// folder was not paused.
	Resume(ctx context.Context, id string) (bool, error)
}

// FolderRepo provides methods for sync folder operations.
// It implements the FolderStore interface.
type FolderRepo struct {
	db *sql.DB
}

// NewFolderRepo creates a new FolderRepo.
func NewFolderRepo(db *sql.DB) *FolderRepo {
	return &FolderRepo{db: db}
}

const folderColumns = `id, agent_id, folder_path, display_name, status,
	file_count, chunk_count, last_synced_at, last_error, created_at, updated_at`

// Create inserts a new folder record. A missing ID is generated and a missing
// status defaults to pending.
func (r *FolderRepo) Create(ctx context.Context, folder *SyncFolderRecord) error {
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	if folder.Status == "" {
		folder.Status = StatusPending
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_folders (id, agent_id, folder_path, display_name, status)
		 VALUES (?, ?, ?, ?, ?)`,
		folder.ID, folder.AgentID, folder.FolderPath, folder.DisplayName, folder.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// GetByID gets a folder by ID. Returns nil and ErrNotFound if not found.
func (r *FolderRepo) GetByID(ctx context.Context, id string) (*SyncFolderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM sync_folders WHERE id = ?`, id)

	folder, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query folder: %w", err)
	}
	return folder, nil
}

// ListAll returns every registered folder ordered by creation time.
func (r *FolderRepo) ListAll(ctx context.Context) ([]*SyncFolderRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM sync_folders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectFolders(rows)
}

// ListByStatus returns folders currently in the given status.
func (r *FolderRepo) ListByStatus(ctx context.Context, status string) ([]*SyncFolderRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM sync_folders WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectFolders(rows)
}

// Delete removes a folder; its sync_files rows go with it by cascade.
func (r *FolderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// BeginSync is the cycle-start compare-and-set: the folder moves to syncing
// only when it is not already syncing and not paused. The previous lastError
// is kept until the cycle completes.
func (r *FolderRepo) BeginSync(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_folders SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status NOT IN (?, ?)`,
		StatusSyncing, id, StatusSyncing, StatusPaused,
	)
	if err != nil {
		return false, fmt.Errorf("failed to begin sync: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to begin sync: %w", err)
	}
	return affected > 0, nil
}

// MarkSynced records a completed cycle.
func (r *FolderRepo) MarkSynced(ctx context.Context, id string, fileCount, chunkCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_folders SET status = ?, file_count = ?, chunk_count = ?,
		 last_synced_at = CURRENT_TIMESTAMP, last_error = '', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		StatusSynced, fileCount, chunkCount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark folder synced: %w", err)
	}
	return nil
}

// MarkError records a failed cycle.
func (r *FolderRepo) MarkError(ctx context.Context, id string, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_folders SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		StatusError, msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark folder error: %w", err)
	}
	return nil
}

// Pause suspends a folder. A running cycle owns the folder's status, so
// pausing applies only when no cycle is active.
func (r *FolderRepo) Pause(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_folders SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != ?`,
		StatusPaused, id, StatusSyncing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to pause folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to pause folder: %w", err)
	}
	return affected > 0, nil
}

// Resume moves a paused folder back to pending.
func (r *FolderRepo) Resume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_folders SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		StatusPending, id, StatusPaused,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resume folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to resume folder: %w", err)
	}
	return affected > 0, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*SyncFolderRecord, error) {
	var folder SyncFolderRecord
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&folder.ID, &folder.AgentID, &folder.FolderPath, &folder.DisplayName,
		&folder.Status, &folder.FileCount, &folder.ChunkCount,
		&lastSyncedAt, &folder.LastError, &folder.CreatedAt, &folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		folder.LastSyncedAt = &t
	}
	return &folder, nil
}

func collectFolders(rows *sql.Rows) ([]*SyncFolderRecord, error) {
	var folders []*SyncFolderRecord
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}
