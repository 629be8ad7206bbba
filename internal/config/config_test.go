package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.HistoryLength)
	assert.Equal(t, 8*time.Hour, cfg.ReplayMin)
	assert.Equal(t, "disorder", cfg.Banner)
	assert.False(t, cfg.Debug)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DISORDER_HISTORY", "42")
	t.Setenv("DISORDER_DEBUG", "true")
	t.Setenv("DISORDER_GAP", "500ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.HistoryLength)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 500*time.Millisecond, cfg.Gap)
}

func TestLoadDirectiveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disorder.conf")
	contents := `# comment lines and blanks are ignored

player "*.ogg" execraw disorder-decode
collection fs UTF-8 /music
namepart title "^(.*)\\.([a-z0-9]+)$" "$1" display
listen 0.0.0.0 9696
broadcast 239.0.0.1 5004
broadcast_from 0.0.0.0 0
multicast_ttl 4
multicast_loop true
stopword the a an
history 100
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Players, 1)
	assert.Equal(t, "*.ogg", cfg.Players[0].Glob)
	assert.Equal(t, "execraw", cfg.Players[0].Command)
	assert.Equal(t, []string{"disorder-decode"}, cfg.Players[0].Args)

	require.Len(t, cfg.Collections, 1)
	assert.Equal(t, "/music", cfg.Collections[0].Root)

	require.Len(t, cfg.Nameparts, 1)
	assert.Equal(t, "title", cfg.Nameparts[0].Part)
	assert.Equal(t, "display", cfg.Nameparts[0].Context)
	assert.True(t, cfg.Nameparts[0].Pattern.MatchString("song.ogg"))

	require.Len(t, cfg.Listen, 1)
	assert.Equal(t, "tcp", cfg.Listen[0].Network)
	assert.Equal(t, "0.0.0.0:9696", cfg.Listen[0].Address)

	require.NotNil(t, cfg.Broadcast)
	assert.Equal(t, "239.0.0.1:5004", cfg.Broadcast.Address)
	assert.Equal(t, "0.0.0.0:0", cfg.Broadcast.From)
	assert.Equal(t, 4, cfg.Broadcast.MulticastTTL)
	assert.True(t, cfg.Broadcast.MulticastLoopback)

	assert.Equal(t, []string{"the", "a", "an"}, cfg.Stopwords)
	assert.Equal(t, 100, cfg.HistoryLength)
}

func TestLoadDirectiveFileUnixSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disorder.conf")
	require.NoError(t, os.WriteFile(path, []byte("listen /run/disorder.socket\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Listen, 1)
	assert.Equal(t, "unix", cfg.Listen[0].Network)
	assert.Equal(t, "/run/disorder.socket", cfg.Listen[0].Address)
}

func TestLoadDirectiveFileRejectsBadPlayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disorder.conf")
	require.NoError(t, os.WriteFile(path, []byte("player only-one-arg\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	assert.Error(t, err)
}
