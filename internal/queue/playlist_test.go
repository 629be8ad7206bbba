package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlaylistName(t *testing.T) {
	owner, name := ParsePlaylistName("alice.commute")
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "commute", name)

	owner, name = ParsePlaylistName("shared")
	assert.Equal(t, "", owner)
	assert.Equal(t, "shared", name)
}

func TestPlaylistCreateGetDelete(t *testing.T) {
	ps := NewPlaylists(0)
	pl, err := ps.Create("alice.commute")
	require.NoError(t, err)
	assert.Equal(t, "alice", pl.Owner)
	assert.True(t, pl.IsOwned())

	got, err := ps.Get("alice.commute")
	require.NoError(t, err)
	assert.Same(t, pl, got)

	require.NoError(t, ps.Delete("alice.commute"))
	_, err = ps.Get("alice.commute")
	assert.ErrorIs(t, err, ErrNoSuchPlaylist)
}

func TestPlaylistCreateDuplicateFails(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)
	_, err = ps.Create("shared")
	assert.Error(t, err)
}

func TestPlaylistSetRequiresLock(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)

	err = ps.Set("conn1", "shared", []string{"/a.mp3"})
	assert.ErrorIs(t, err, ErrNotLocked)

	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))
	require.NoError(t, ps.Set("conn1", "shared", []string{"/a.mp3", "/b.mp3"}))

	pl, _ := ps.Get("shared")
	assert.Equal(t, []string{"/a.mp3", "/b.mp3"}, pl.TrackList())
}

func TestPlaylistLockExclusive(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)

	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))
	err = ps.Lock("conn2", "shared", time.Minute)
	assert.ErrorIs(t, err, ErrPlaylistLocked)

	// conn1 re-locking its own lock is fine.
	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))
}

func TestPlaylistLockExpiresAndCanBeReacquired(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)

	require.NoError(t, ps.Lock("conn1", "shared", -time.Second))
	require.NoError(t, ps.Lock("conn2", "shared", time.Minute))
}

func TestPlaylistMaxLengthEnforced(t *testing.T) {
	ps := NewPlaylists(2)
	_, err := ps.Create("shared")
	require.NoError(t, err)
	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))

	err = ps.Set("conn1", "shared", []string{"/a.mp3", "/b.mp3", "/c.mp3"})
	assert.ErrorIs(t, err, ErrPlaylistTooLong)
}

func TestPlaylistReleaseConnectionUnlocks(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)
	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))

	ps.ReleaseConnection("conn1")
	require.NoError(t, ps.Lock("conn2", "shared", time.Minute))
}

func TestPlaylistDeleteReleasesLock(t *testing.T) {
	ps := NewPlaylists(0)
	_, err := ps.Create("shared")
	require.NoError(t, err)
	require.NoError(t, ps.Lock("conn1", "shared", time.Minute))

	require.NoError(t, ps.Delete("shared"))
	_, err = ps.Create("shared")
	require.NoError(t, err)
	// conn1's old lock entry must not linger and block a fresh lock attempt.
	require.NoError(t, ps.Lock("conn2", "shared", time.Minute))
}
