package queue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	q := New(5)
	a, _ := q.Play("/a.mp3", "alice")
	_, _ = q.Play("/b.mp3", "bob")
	require.NoError(t, q.Start(a.ID))

	_, _ = q.Play("/c.mp3", "carol")

	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, q.Save(path))

	loaded, err := Load(path, 5)
	require.NoError(t, err)

	assert.Len(t, loaded.List(), len(q.List()))
	got, err := loaded.Get(a.ID)
	require.NoError(t, err)
	// a was StateStarted at save time; a fresh process has no decoder
	// running for it, so it must come back as unplayed.
	assert.Equal(t, StateUnplayed, got.State)
	_, playing := loaded.Playing()
	assert.False(t, playing)
}

func TestLoadMissingFileReturnsEmptyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	q, err := Load(path, 10)
	require.NoError(t, err)
	assert.Empty(t, q.List())
	assert.Empty(t, q.Recent())
}

func TestSaveLoadPreservesHistory(t *testing.T) {
	q := New(5)
	e, _ := q.Play("/a.mp3", "alice")
	require.NoError(t, q.Start(e.ID))
	_, err := q.Finish(0, true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, q.Save(path))

	loaded, err := Load(path, 5)
	require.NoError(t, err)
	recent := loaded.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, StateOK, recent[0].State)
	assert.Equal(t, "/a.mp3", recent[0].Track)
}
