package syncer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxDepth bounds how deep a scan descends below the folder root.
	DefaultMaxDepth = 8
	// DefaultMaxEntries bounds how many files one scan may return.
	DefaultMaxEntries = 10000
)

// ScanOptions bounds a folder scan. Zero values take the defaults.
type ScanOptions struct {
	MaxDepth   int
	MaxEntries int
}

// ScannedFile is one regular file found during a folder scan, with the disk
// state used for change detection.
type ScannedFile struct {
	RelPath    string // Relative to the folder root, slash-separated
	AbsPath    string
	SizeBytes  int64
	MTimeNanos int64
}

// excludedDirNames are dependency and build output directories that never
// reach the index. Hidden directories are excluded separately by name prefix.
var excludedDirNames = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
}

// excludedFileNames are generated lockfiles. Their churn carries no
// searchable content.
var excludedFileNames = map[string]struct{}{
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"bun.lockb":         {},
	"poetry.lock":       {},
	"Pipfile.lock":      {},
	"Cargo.lock":        {},
	"Gemfile.lock":      {},
	"composer.lock":     {},
	"go.sum":            {},
}

// Excluded reports whether a directory entry name is skipped during folder
// scans. It is a pure predicate over the base name.
func Excluded(name string, isDir bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if isDir {
		_, skip := excludedDirNames[name]
		return skip
	}
	_, skip := excludedFileNames[name]
	return skip
}

// errScanLimit stops the walk once the entry ceiling is reached.
var errScanLimit = errors.New("scan entry limit reached")

// ScanFolder enumerates the regular files under root, bounded by depth and
// entry count. The returned truncated flag is true when the entry ceiling
// cut the enumeration short; callers must not treat a truncated listing as
// the complete set of files. A missing or unreadable root is an error;
// unreadable subtrees are skipped.
func ScanFolder(root string, opts ScanOptions) (files []ScannedFile, truncated bool, err error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("not a directory: %s", root)
	}

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtree, skip rather than failing the cycle.
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1

		if entry.IsDir() {
			if Excluded(entry.Name(), true) {
				return filepath.SkipDir
			}
			if depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if Excluded(entry.Name(), false) {
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		fileInfo, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}

		files = append(files, ScannedFile{
			RelPath:    filepath.ToSlash(rel),
			AbsPath:    path,
			SizeBytes:  fileInfo.Size(),
			MTimeNanos: fileInfo.ModTime().UnixNano(),
		})
		if len(files) >= maxEntries {
			return errScanLimit
		}
		return nil
	})

	if errors.Is(walkErr, errScanLimit) {
		return files, true, nil
	}
	if walkErr != nil {
		return nil, false, fmt.Errorf("failed to scan folder: %w", walkErr)
	}
	return files, false, nil
}
