package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docdex/internal/contextutil"
)

// defaultWatchDebounce is the quiet period after the last filesystem event
// before a folder's sync is triggered. Editors and build tools emit bursts
// of events; one trigger per burst is enough.
const defaultWatchDebounce = 2 * time.Second

// Watcher turns filesystem events under registered folders into debounced
// per-folder sync triggers. fsnotify watches are not recursive, so every
// non-excluded subdirectory is registered as well; directories created later
// are picked up from their create events.
type Watcher struct {
	fsw      *fsnotify.Watcher
	trigger  func(folderID string)
	debounce time.Duration

	mu     sync.Mutex
	roots  map[string]string // absolute folder path -> folder ID
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher that calls trigger with a folder ID after
// changes under that folder settle.
func NewWatcher(trigger func(folderID string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		trigger:  trigger,
		debounce: defaultWatchDebounce,
		roots:    make(map[string]string),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Add registers a folder root and its current subdirectories.
func (w *Watcher) Add(folderID, folderPath string) error {
	abs, err := filepath.Abs(folderPath)
	if err != nil {
		return fmt.Errorf("failed to resolve folder path: %w", err)
	}

	w.mu.Lock()
	w.roots[abs] = folderID
	w.mu.Unlock()

	if err := w.fsw.Add(abs); err != nil {
		return fmt.Errorf("failed to watch folder: %w", err)
	}

	_ = filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || path == abs {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if Excluded(entry.Name(), true) {
			return filepath.SkipDir
		}
		_ = w.fsw.Add(path)
		return nil
	})
	return nil
}

// Remove drops a folder root, its subdirectory watches, and any pending
// trigger.
func (w *Watcher) Remove(folderPath string) {
	abs, err := filepath.Abs(folderPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	folderID := w.roots[abs]
	delete(w.roots, abs)
	if timer, ok := w.timers[folderID]; ok {
		timer.Stop()
		delete(w.timers, folderID)
	}
	w.mu.Unlock()

	for _, watched := range w.fsw.WatchList() {
		if watched == abs || strings.HasPrefix(watched, abs+string(filepath.Separator)) {
			_ = w.fsw.Remove(watched)
		}
	}
}

// Run consumes filesystem events until the context is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.WarnContext(ctx, "folder watcher error", "error", err)
		}
	}
}

// Close stops all pending triggers and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Base(event.Name)
	if Excluded(name, true) || Excluded(name, false) {
		return
	}

	// Directories created after Add extend the watch set.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
		}
	}

	folderID := w.folderFor(event.Name)
	if folderID == "" {
		return
	}
	w.scheduleTrigger(folderID)
}

// folderFor resolves an event path to the deepest registered folder root
// containing it.
func (w *Watcher) folderFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	bestID := ""
	bestLen := -1
	for root, id := range w.roots {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > bestLen {
			bestID = id
			bestLen = len(root)
		}
	}
	return bestID
}

func (w *Watcher) scheduleTrigger(folderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[folderID]; ok {
		timer.Stop()
	}
	w.timers[folderID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, folderID)
		w.mu.Unlock()
		w.trigger(folderID)
	})
}
