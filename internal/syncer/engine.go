package syncer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_service.go -package=mocks docdex/internal/syncer Service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docdex/internal/chunker"
	"docdex/internal/contextutil"
	"docdex/internal/llm"
	"docdex/internal/storage"
	"docdex/internal/vectorstore"
)

const (
	// embedBatchSize caps how many chunk texts go to the embedding gateway
	// in one request.
	embedBatchSize = 32
	// syncQueueSize bounds the trigger queue. Triggers compare-and-set the
	// folder status before enqueueing, so at most one entry per folder is in
	// flight; an overflowing folder is retried on the next scheduled scan.
	syncQueueSize = 256
	// binarySniffLen is how many leading bytes are checked for NUL bytes
	// when deciding whether a file holds indexable text.
	binarySniffLen = 8000
)

// Service is the sync surface consumed by the HTTP layer.
type Service interface {
	// RegisterFolder validates the path, creates the folder record, and
	// queues its first sync cycle.
	RegisterFolder(ctx context.Context, folder *storage.SyncFolderRecord) error
	// UnregisterFolder removes the folder, its file rows, and its vectors.
	UnregisterFolder(ctx context.Context, folderID string) error
	// Trigger starts a sync cycle unless one is already running or the
	// folder is paused.
	Trigger(ctx context.Context, folderID string) (TriggerResult, error)
	// Pause suspends automatic and manual sync for a folder.
	Pause(ctx context.Context, folderID string) (bool, error)
	// Resume lifts a pause and queues a catch-up cycle.
	Resume(ctx context.Context, folderID string) (bool, error)
	// Status reports the aggregated sync state of every folder.
	Status(ctx context.Context) (StatusReport, error)
}

// Options tune the sync engine. Zero values take the documented defaults.
type Options struct {
	// Enabled gates the background scheduler and watcher. Registration and
	// manual operations still work when false; nothing runs automatically.
	Enabled bool
	// ScanInterval is the period of the full re-scan. Default 5 minutes.
	ScanInterval time.Duration
	// Workers bounds how many folders sync concurrently. Default 2.
	Workers int
	// MaxDepth and MaxEntries bound each folder scan.
	MaxDepth   int
	MaxEntries int
	// Watch enables filesystem-event triggers between scans.
	Watch bool
}

// Engine keeps registered folders' indexes consistent with the filesystem.
// It owns the scheduler, the watcher, and the per-cycle indexing pipeline.
type Engine struct {
	folders    storage.FolderStore
	files      storage.FileStore
	chunker    *chunker.TokenChunker
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	collection string

	enabled  bool
	interval time.Duration
	workers  int
	scanOpts ScanOptions

	watcher *Watcher
	syncCh  chan string
}

// NewEngine creates the sync engine. The watcher is created eagerly so a
// broken inotify setup fails at startup rather than mid-run.
func NewEngine(folders storage.FolderStore, files storage.FileStore, tokenChunker *chunker.TokenChunker, embedder llm.Embedder, store vectorstore.VectorStore, collection string, opts Options) (*Engine, error) {
	interval := opts.ScanInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}

	e := &Engine{
		folders:    folders,
		files:      files,
		chunker:    tokenChunker,
		embedder:   embedder,
		store:      store,
		collection: collection,
		enabled:    opts.Enabled,
		interval:   interval,
		workers:    workers,
		scanOpts:   ScanOptions{MaxDepth: opts.MaxDepth, MaxEntries: opts.MaxEntries},
		syncCh:     make(chan string, syncQueueSize),
	}

	if opts.Enabled && opts.Watch {
		watcher, err := NewWatcher(e.watcherTrigger)
		if err != nil {
			return nil, err
		}
		e.watcher = watcher
	}
	return e, nil
}

// Run drives scheduled scans, watcher triggers, and the worker pool until
// the context is cancelled. Cycle failures land in folder state, never here.
func (e *Engine) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	if !e.enabled {
		logger.InfoContext(ctx, "folder sync disabled")
		return nil
	}

	e.recoverInterrupted(ctx)

	if e.watcher != nil {
		e.watchRegistered(ctx)
		go e.watcher.Run(ctx)
		defer func() { _ = e.watcher.Close() }()
	}

	workers := &errgroup.Group{}
	workers.SetLimit(e.workers)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "sync scheduler started", "interval", e.interval.String(), "workers", e.workers)
	e.enqueueDue(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = workers.Wait()
			return ctx.Err()
		case <-ticker.C:
			e.enqueueDue(ctx)
		case folderID := <-e.syncCh:
			workers.Go(func() error {
				e.syncFolder(ctx, folderID)
				return nil
			})
		}
	}
}

// RegisterFolder validates the path, persists the record, starts watching,
// and queues the initial cycle.
func (e *Engine) RegisterFolder(ctx context.Context, folder *storage.SyncFolderRecord) error {
	info, err := os.Stat(folder.FolderPath)
	if err != nil {
		return fmt.Errorf("folder path is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder path is not a directory: %s", folder.FolderPath)
	}

	abs, err := filepath.Abs(folder.FolderPath)
	if err != nil {
		return fmt.Errorf("failed to resolve folder path: %w", err)
	}
	folder.FolderPath = abs
	if folder.DisplayName == "" {
		folder.DisplayName = filepath.Base(abs)
	}

	if err := e.folders.Create(ctx, folder); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	logger := contextutil.LoggerFromContext(ctx)
	if e.watcher != nil {
		if err := e.watcher.Add(folder.ID, folder.FolderPath); err != nil {
			logger.WarnContext(ctx, "failed to watch folder", "folder_id", folder.ID, "error", err)
		}
	}

	// The first cycle starts now rather than on the next scheduled scan.
	// With sync disabled the folder stays pending until a scheduler exists
	// to drain it.
	if e.enabled {
		if started, err := e.folders.BeginSync(ctx, folder.ID); err == nil && started {
			e.enqueue(ctx, folder.ID)
		}
	}

	logger.InfoContext(ctx, "folder registered", "folder_id", folder.ID, "path", folder.FolderPath)
	return nil
}

// UnregisterFolder removes the folder record (cascading its file rows) and
// then its vectors. A cycle racing the removal aborts on the missing rows.
func (e *Engine) UnregisterFolder(ctx context.Context, folderID string) error {
	folder, err := e.folders.GetByID(ctx, folderID)
	if err != nil {
		return err
	}

	if e.watcher != nil {
		e.watcher.Remove(folder.FolderPath)
	}

	if err := e.folders.Delete(ctx, folderID); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if err := e.store.DeleteByFolder(ctx, e.collection, folderID); err != nil {
		return fmt.Errorf("failed to delete folder vectors: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "folder unregistered", "folder_id", folderID)
	return nil
}

// Trigger starts a cycle for the folder. The status compare-and-set decides
// started versus skipped exactly once.
func (e *Engine) Trigger(ctx context.Context, folderID string) (TriggerResult, error) {
	if _, err := e.folders.GetByID(ctx, folderID); err != nil {
		return TriggerResult{}, err
	}
	if !e.enabled {
		return TriggerResult{Outcome: TriggerSkipped, Reason: "sync is disabled"}, nil
	}

	started, err := e.folders.BeginSync(ctx, folderID)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("failed to begin sync: %w", err)
	}
	if !started {
		return TriggerResult{
			Outcome: TriggerSkipped,
			Reason:  "a sync cycle is already running or the folder is paused",
		}, nil
	}

	e.enqueue(ctx, folderID)
	return TriggerResult{Outcome: TriggerStarted}, nil
}

// Pause suspends a folder. It fails with storage.ErrNotFound for unknown
// folders and returns false while a cycle is running.
func (e *Engine) Pause(ctx context.Context, folderID string) (bool, error) {
	if _, err := e.folders.GetByID(ctx, folderID); err != nil {
		return false, err
	}
	return e.folders.Pause(ctx, folderID)
}

// Resume lifts a pause and immediately queues a catch-up cycle.
func (e *Engine) Resume(ctx context.Context, folderID string) (bool, error) {
	if _, err := e.folders.GetByID(ctx, folderID); err != nil {
		return false, err
	}

	resumed, err := e.folders.Resume(ctx, folderID)
	if err != nil || !resumed {
		return resumed, err
	}

	if e.enabled {
		if started, err := e.folders.BeginSync(ctx, folderID); err == nil && started {
			e.enqueue(ctx, folderID)
		}
	}
	return true, nil
}

// enqueue hands an already compare-and-set folder to the worker pool.
func (e *Engine) enqueue(ctx context.Context, folderID string) {
	select {
	case e.syncCh <- folderID:
	default:
		// Queue saturated. Parking the folder in error hands it back to the
		// next scheduled scan instead of leaving it stuck in syncing.
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "sync queue full", "folder_id", folderID)
		if err := e.folders.MarkError(ctx, folderID, "sync queue full, retrying on next scan"); err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to park folder", "folder_id", folderID, "error", err)
		}
	}
}

// enqueueDue queues every folder eligible for a cycle. Syncing and paused
// folders lose the compare-and-set and are left alone.
func (e *Engine) enqueueDue(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	folders, err := e.folders.ListAll(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list folders for scheduled scan", "error", err)
		return
	}

	for _, folder := range folders {
		switch folder.Status {
		case storage.StatusPending, storage.StatusSynced, storage.StatusError:
			started, err := e.folders.BeginSync(ctx, folder.ID)
			if err != nil {
				logger.WarnContext(ctx, "failed to begin scheduled sync", "folder_id", folder.ID, "error", err)
				continue
			}
			if started {
				e.enqueue(ctx, folder.ID)
			}
		}
	}
}

// recoverInterrupted surfaces folders stranded in syncing by a previous
// process as errors so the scheduler retries them.
func (e *Engine) recoverInterrupted(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	stuck, err := e.folders.ListByStatus(ctx, storage.StatusSyncing)
	if err != nil {
		logger.WarnContext(ctx, "failed to list interrupted folders", "error", err)
		return
	}
	for _, folder := range stuck {
		logger.WarnContext(ctx, "recovering interrupted sync", "folder_id", folder.ID)
		if err := e.folders.MarkError(ctx, folder.ID, "sync interrupted by restart"); err != nil {
			logger.WarnContext(ctx, "failed to recover folder", "folder_id", folder.ID, "error", err)
		}
	}
}

// watchRegistered adds every known folder to the watcher at startup.
func (e *Engine) watchRegistered(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	folders, err := e.folders.ListAll(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list folders for watching", "error", err)
		return
	}
	for _, folder := range folders {
		if err := e.watcher.Add(folder.ID, folder.FolderPath); err != nil {
			logger.WarnContext(ctx, "failed to watch folder", "folder_id", folder.ID, "error", err)
		}
	}
}

// watcherTrigger is the debounced watcher callback. Watcher events carry no
// request context, so folder state changes run against the background one.
func (e *Engine) watcherTrigger(folderID string) {
	ctx := context.Background()
	started, err := e.folders.BeginSync(ctx, folderID)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to begin watcher sync", "folder_id", folderID, "error", err)
		return
	}
	if started {
		e.enqueue(ctx, folderID)
	}
}

// syncFolder runs one full cycle for a folder already moved to syncing and
// lands the outcome in folder state.
func (e *Engine) syncFolder(ctx context.Context, folderID string) {
	logger := contextutil.LoggerFromContext(ctx)

	folder, err := e.folders.GetByID(ctx, folderID)
	if err != nil {
		logger.WarnContext(ctx, "failed to load folder for sync", "folder_id", folderID, "error", err)
		return
	}

	start := time.Now()
	fileCount, chunkCount, err := e.syncCycle(ctx, folder)
	if err != nil {
		logger.ErrorContext(ctx, "sync cycle failed", "folder_id", folderID, "error", err)
		if markErr := e.folders.MarkError(ctx, folderID, err.Error()); markErr != nil {
			logger.WarnContext(ctx, "failed to record sync error", "folder_id", folderID, "error", markErr)
		}
		return
	}

	if err := e.folders.MarkSynced(ctx, folderID, fileCount, chunkCount); err != nil {
		logger.WarnContext(ctx, "failed to mark folder synced", "folder_id", folderID, "error", err)
		return
	}
	logger.InfoContext(ctx, "sync cycle completed",
		"folder_id", folderID, "files", fileCount, "chunks", chunkCount,
		"duration", time.Since(start).String())
}

// syncCycle enumerates the folder, indexes new and changed files, and drops
// rows and vectors of removed files. Per-file failures are recorded on the
// file row and do not abort the cycle; enumeration failures abort it.
func (e *Engine) syncCycle(ctx context.Context, folder *storage.SyncFolderRecord) (int, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	scanned, truncated, err := ScanFolder(folder.FolderPath, e.scanOpts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to scan folder: %w", err)
	}
	if truncated {
		logger.WarnContext(ctx, "folder scan truncated at entry limit",
			"folder_id", folder.ID, "entries", len(scanned))
	}

	known, err := e.files.ListByFolder(ctx, folder.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list indexed files: %w", err)
	}
	knownByPath := make(map[string]*storage.SyncFileRecord, len(known))
	for _, record := range known {
		knownByPath[record.RelPath] = record
	}

	totalChunks := 0
	for _, file := range scanned {
		if ctx.Err() != nil {
			return 0, 0, fmt.Errorf("sync cancelled: %w", ctx.Err())
		}

		prev := knownByPath[file.RelPath]
		delete(knownByPath, file.RelPath)

		if fileUnchanged(prev, file) {
			totalChunks += prev.ChunkCount
			continue
		}

		chunkCount, err := e.indexFile(ctx, folder, file, prev)
		if err != nil {
			if ctx.Err() != nil {
				return 0, 0, fmt.Errorf("sync cancelled: %w", ctx.Err())
			}
			logger.WarnContext(ctx, "failed to index file",
				"folder_id", folder.ID, "rel_path", file.RelPath, "error", err)
			e.recordFileError(ctx, folder.ID, file, err)
			continue
		}
		totalChunks += chunkCount
	}

	// Leftover rows are files no longer on disk. A truncated enumeration
	// cannot prove absence, so removals wait for a complete scan.
	if !truncated {
		for relPath := range knownByPath {
			if ctx.Err() != nil {
				return 0, 0, fmt.Errorf("sync cancelled: %w", ctx.Err())
			}
			if err := e.store.DeleteByFile(ctx, e.collection, folder.ID, relPath); err != nil {
				logger.WarnContext(ctx, "failed to delete vectors of removed file",
					"folder_id", folder.ID, "rel_path", relPath, "error", err)
				continue
			}
			if err := e.files.Delete(ctx, folder.ID, relPath); err != nil {
				logger.WarnContext(ctx, "failed to delete removed file row",
					"folder_id", folder.ID, "rel_path", relPath, "error", err)
			}
		}
	}

	return len(scanned), totalChunks, nil
}

// indexFile brings one file's chunks, vectors, and bookkeeping row up to
// date with its current content.
func (e *Engine) indexFile(ctx context.Context, folder *storage.SyncFolderRecord, file ScannedFile, prev *storage.SyncFileRecord) (int, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	hash := contentHash(content)
	record := &storage.SyncFileRecord{
		FolderID:    folder.ID,
		RelPath:     file.RelPath,
		ContentHash: hash,
		MTimeNanos:  file.MTimeNanos,
		SizeBytes:   file.SizeBytes,
	}

	// A touched but byte-identical file refreshes bookkeeping without
	// re-embedding anything.
	if prev != nil && prev.ContentHash == hash {
		record.ChunkCount = prev.ChunkCount
		if err := e.files.Upsert(ctx, record); err != nil {
			return 0, fmt.Errorf("failed to refresh file record: %w", err)
		}
		return prev.ChunkCount, nil
	}

	if prev != nil {
		if err := e.store.DeleteByFile(ctx, e.collection, folder.ID, file.RelPath); err != nil {
			return 0, fmt.Errorf("failed to delete stale vectors: %w", err)
		}
	}

	var chunks []chunker.Chunk
	if isProbablyText(content) {
		chunks = e.chunker.ChunkByTokens(string(content), chunker.TokenChunkOptions{})
	}
	if len(chunks) > 0 {
		title := ExtractTitle(content, file.RelPath)
		if err := e.upsertChunks(ctx, folder.ID, file.RelPath, title, chunks); err != nil {
			return 0, err
		}
	}

	// The row is written after the vectors so an interrupted file keeps its
	// stale hash and is re-indexed by the next cycle.
	record.ChunkCount = len(chunks)
	if err := e.files.Upsert(ctx, record); err != nil {
		return 0, fmt.Errorf("failed to upsert file record: %w", err)
	}
	return len(chunks), nil
}

// upsertChunks embeds chunk texts in batches and writes the points.
func (e *Engine) upsertChunks(ctx context.Context, folderID, relPath, title string, chunks []chunker.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		if ctx.Err() != nil {
			return fmt.Errorf("sync cancelled: %w", ctx.Err())
		}

		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := e.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, chunk := range batch {
			points[i] = vectorstore.Point{
				ID:  chunkPointID(folderID, relPath, chunk.Index),
				Vec: vectors[i],
				Meta: map[string]any{
					"folder_id":   folderID,
					"rel_path":    relPath,
					"chunk_index": chunk.Index,
					"text":        chunk.Text,
					"title":       title,
					"start_line":  chunk.StartLine,
					"end_line":    chunk.EndLine,
					"token_count": chunk.TokenCount,
				},
			}
		}
		if err := e.store.Upsert(ctx, e.collection, points); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}
	return nil
}

// recordFileError parks the failure on the file row with an empty hash so
// the next cycle retries the file.
func (e *Engine) recordFileError(ctx context.Context, folderID string, file ScannedFile, cause error) {
	record := &storage.SyncFileRecord{
		FolderID:   folderID,
		RelPath:    file.RelPath,
		MTimeNanos: file.MTimeNanos,
		SizeBytes:  file.SizeBytes,
		LastError:  cause.Error(),
	}
	if err := e.files.Upsert(ctx, record); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to record file error",
			"folder_id", folderID, "rel_path", file.RelPath, "error", err)
	}
}

// fileUnchanged reports whether the on-disk state still matches the row
// closely enough to skip the file without reading it. Rows with a recorded
// error or no hash always re-index.
func fileUnchanged(prev *storage.SyncFileRecord, file ScannedFile) bool {
	return prev != nil &&
		prev.LastError == "" &&
		prev.ContentHash != "" &&
		prev.MTimeNanos == file.MTimeNanos &&
		prev.SizeBytes == file.SizeBytes
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// chunkPointID derives a stable UUID for a chunk so re-indexing the same
// chunk overwrites its point instead of accumulating duplicates.
func chunkPointID(folderID, relPath string, index int) string {
	name := fmt.Sprintf("%s/%s#%d", folderID, relPath, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// isProbablyText reports whether content looks like text rather than a
// binary blob, using a NUL-byte sniff over the leading bytes.
func isProbablyText(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return !bytes.ContainsRune(sniff, 0)
}
