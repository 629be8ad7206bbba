package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanResult holds the outcome of scanning a collection root.
type ScanResult struct {
	Tracks []*Track
	Errors map[string]error
}

// ScanCollection walks root recursively, building a Track for every
// supported audio file found. Per-file errors are collected rather than
// aborting the whole walk, matching the scanner's role as a best-effort
// external collaborator that feeds the store (spec §1: "out of scope...
// only their interface to the core is specified").
func ScanCollection(root string) (*ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("store: accessing collection root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store: %q is not a directory", root)
	}

	result := &ScanResult{Errors: make(map[string]error)}

	err = filepath.Walk(root, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			result.Errors[path] = walkErr
			slog.Warn("store: error accessing path during scan", "path", path, "error", walkErr)
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		if !IsSupportedFormat(strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		t, err := NewTrackFromFile(path)
		if err != nil {
			result.Errors[path] = err
			slog.Warn("store: failed to read track", "path", path, "error", err)
			return nil
		}
		result.Tracks = append(result.Tracks, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: walking collection root %q: %w", root, err)
	}

	sort.Slice(result.Tracks, func(i, j int) bool {
		return result.Tracks[i].Path < result.Tracks[j].Path
	})

	slog.Info("store: collection scan complete",
		"root", root, "tracks_found", len(result.Tracks), "errors", len(result.Errors))
	return result, nil
}

// ScanInto scans root and adds every discovered track into d. Tracks
// already known (by path) are refreshed in place; their preferences are
// untouched. Returns the number of newly added tracks, and removes from
// d any previously known track under root that the scan no longer finds
// (a stale file, since deleted).
func ScanInto(root string, d *Database) (added int, removed int, err error) {
	result, err := ScanCollection(root)
	if err != nil {
		return 0, 0, err
	}

	found := make(map[string]struct{}, len(result.Tracks))
	for _, t := range result.Tracks {
		found[t.Path] = struct{}{}
		if !d.Exists(t.Path) {
			added++
		}
		d.Add(t)
	}

	prefix := strings.TrimSuffix(root, "/") + "/"
	for _, path := range d.pathsUnderPrefix(prefix) {
		if _, ok := found[path]; !ok {
			d.Remove(path)
			removed++
		}
	}

	slog.Info("store: rescan applied", "root", root, "added", added, "removed", removed)
	return added, removed, nil
}

// pathsUnderPrefix returns every known track path with the given prefix.
func (d *Database) pathsUnderPrefix(prefix string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for path := range d.tracks {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	return out
}
