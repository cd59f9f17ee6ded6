package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	// DSN parameters apply to every pooled connection. The busy timeout
	// makes concurrent sync cycles wait instead of failing with SQLITE_BUSY;
	// foreign keys must hold on all connections or folder deletes stop
	// cascading to sync_files rows.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sync_folders (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			folder_path TEXT NOT NULL,
			display_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			file_count INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			last_synced_at DATETIME,
			last_error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (agent_id, folder_path)
		);`,
		`CREATE TABLE IF NOT EXISTS sync_files (
			folder_id TEXT NOT NULL,
			rel_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			mtime_nanos INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			last_indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (folder_id, rel_path),
			FOREIGN KEY (folder_id) REFERENCES sync_folders(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sync_folders_status ON sync_folders(status);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
