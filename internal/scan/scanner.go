// Package scan walks a backup root and yields candidate files for indexing,
// applying the configured skip rules. The walk carries no state across
// invocations; re-walking a root starts from scratch.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// tempMarkers are the case-insensitive substrings that mark a temp file.
var tempMarkers = []string{"temp", "tmp", "~"}

// Entry is one candidate file: its absolute path and its path relative to
// the backup root.
type Entry struct {
	Path         string
	RelativePath string
}

// Config toggles the skip rules individually.
type Config struct {
	// SkipHidden suppresses dot-prefixed files and prunes dot-prefixed
	// directories so their contents are never visited.
	SkipHidden bool
	// SkipTemp suppresses filenames containing temp, tmp, or ~.
	SkipTemp bool
	// ExcludedExtensions is a deny-list of extensions ("tmp" or ".tmp",
	// case-insensitive).
	ExcludedExtensions []string
}

// Scanner enumerates regular files under a root.
type Scanner struct {
	skipHidden bool
	skipTemp   bool
	excluded   map[string]bool
}

// New creates a Scanner from cfg. Excluded extensions are normalized to
// lower case with a leading dot.
func New(cfg Config) *Scanner {
	excluded := make(map[string]bool, len(cfg.ExcludedExtensions))
	for _, ext := range cfg.ExcludedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		excluded[ext] = true
	}
	return &Scanner{
		skipHidden: cfg.SkipHidden,
		skipTemp:   cfg.SkipTemp,
		excluded:   excluded,
	}
}

// ShouldSkip applies the file-level skip rules to a filename, in order:
// hidden, temp, excluded extension.
func (s *Scanner) ShouldSkip(filename string) bool {
	if s.skipHidden && strings.HasPrefix(filename, ".") {
		return true
	}
	if s.skipTemp {
		lower := strings.ToLower(filename)
		for _, marker := range tempMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	if len(s.excluded) > 0 && s.excluded[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	return false
}

// Walk enumerates regular files under root, calling visit for each candidate
// and counting files suppressed by the skip rules. Contents of pruned hidden
// directories are never visited and never counted.
//
// A file that vanishes between directory listing and stat is simply absent
// from the sequence. An error enumerating a directory — including a missing
// or unlistable root — fails the walk.
func (s *Scanner) Walk(ctx context.Context, root string, visit func(Entry) error) (skipped int64, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path != root && errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && s.skipHidden && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if s.ShouldSkip(d.Name()) {
			skipped++
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		return visit(Entry{Path: path, RelativePath: rel})
	})
	return skipped, err
}
