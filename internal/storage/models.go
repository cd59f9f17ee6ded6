package storage

import "time"

// Folder sync lifecycle states. A folder is registered as pending, moves to
// syncing while a cycle runs, and lands in synced or error. Paused folders
// receive no automatic cycles until resumed.
const (
	StatusPending = "pending"
	StatusSyncing = "syncing"
	StatusSynced  = "synced"
	StatusError   = "error"
	StatusPaused  = "paused"
)

// SyncFolderRecord represents a filesystem folder registered for indexing.
type SyncFolderRecord struct {
	ID           string // UUID
	AgentID      string // Owning agent UUID
	FolderPath   string // Absolute path on disk
	DisplayName  string
	Status       string
	FileCount    int
	ChunkCount   int
	LastSyncedAt *time.Time
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncFileRecord is the per-file bookkeeping row inside a folder. One row
// exists per currently-tracked path; the row is deleted when the file
// disappears from disk or the folder is removed.
type SyncFileRecord struct {
	FolderID      string
	RelPath       string // Relative path from folder root, slash-separated
	ContentHash   string // SHA256 hex string of file content
	MTimeNanos    int64  // File modification time, unix nanoseconds
	SizeBytes     int64
	ChunkCount    int
	LastIndexedAt time.Time
	LastError     string
}
