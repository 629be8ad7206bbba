package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(RightRead)
	require.NoError(t, s.AddUser("alice", "secret", "alice@example.com", RightRead|RightPlay|RightAdmin))
	nonce, err := s.Register("bob", "hunter2", "bob@example.com")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "passwd.json")
	require.NoError(t, s.Save(path))

	loaded, err := LoadStore(path, RightRead)
	require.NoError(t, err)

	alice, err := loaded.Get("alice")
	require.NoError(t, err)
	assert.True(t, alice.Confirmed())
	assert.True(t, alice.CheckPassword("secret"))
	assert.Equal(t, RightRead|RightPlay|RightAdmin, alice.Rights)

	bob, err := loaded.Get("bob")
	require.NoError(t, err)
	assert.False(t, bob.Confirmed())
	require.NoError(t, loaded.Confirm("bob", nonce))
	assert.Equal(t, RightRead, bob.Rights)
}

func TestLoadStoreMissingFileReturnsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := LoadStore(path, RightRead)
	require.NoError(t, err)
	_, err = s.Get("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
