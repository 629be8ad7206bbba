package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCollectionFindsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("fake-mp3-data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.flac"), []byte("fake-flac-data"), 0o644))

	result, err := ScanCollection(dir)
	require.NoError(t, err)
	assert.Len(t, result.Tracks, 2)
	assert.Empty(t, result.Errors)
}

func TestScanIntoAddsAndRemovesStaleTracks(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(pathA, []byte("data-a"), 0o644))

	d := NewDatabase(nil, nil)
	added, removed, err := ScanInto(dir, d)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, removed)
	assert.True(t, d.Exists(pathA))

	require.NoError(t, os.Remove(pathA))

	added, removed, err = ScanInto(dir, d)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, removed)
	assert.False(t, d.Exists(pathA))
}

func TestScanCollectionRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0o644))

	_, err := ScanCollection(file)
	assert.Error(t, err)
}
