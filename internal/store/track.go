// Package store implements the track/preference database: a keyed mapping
// from track path to arbitrary preferences, alias resolution, tag and namepart handling, and word-index search.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Track is a single catalogued audio file: its resolved path plus the
// metadata the scanner extracted at discovery time. Preferences (tags,
// weight, display-name overrides) live separately, keyed by Path, so that
// re-scanning never clobbers user edits.
type Track struct {
	Path     string // absolute filesystem path, the canonical identifier
	Checksum string
	Title    string
	Artist   string
	Album    string
	Genre    string
	Year     int
	Length   int // seconds
}

// SupportedFormats lists the audio file extensions the scanner recognises.
var SupportedFormats = []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}

// IsSupportedFormat reports whether ext (including its leading dot) names a
// recognised audio format.
func IsSupportedFormat(ext string) bool {
	lower := strings.ToLower(ext)
	for _, f := range SupportedFormats {
		if lower == f {
			return true
		}
	}
	return false
}

// NewTrackFromFile reads tag metadata and computes a content checksum for
// the file at path, returning a Track not yet known to any Database.
func NewTrackFromFile(path string) (*Track, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", absPath, err)
	}
	defer f.Close()

	checksum, err := checksumFile(f)
	if err != nil {
		return nil, fmt.Errorf("store: checksumming %s: %w", absPath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("store: rewinding %s: %w", absPath, err)
	}

	t := &Track{
		Path:     absPath,
		Checksum: checksum,
		Title:    strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath)),
	}

	meta, err := tag.ReadFrom(f)
	if err != nil {
		// Metadata is advisory; a file with no readable tags is still a
		// valid track, identified by its filename alone.
		return t, nil
	}
	if title := meta.Title(); title != "" {
		t.Title = title
	}
	t.Artist = meta.Artist()
	t.Album = meta.Album()
	t.Genre = meta.Genre()
	t.Year = meta.Year()
	return t, nil
}

func checksumFile(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
