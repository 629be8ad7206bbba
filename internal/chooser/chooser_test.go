package chooser

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	paths  []string
	random map[string]bool
	weight map[string]int
}

func (f *fakeLibrary) AllPaths() []string { return f.paths }
func (f *fakeLibrary) PickAtRandom(path string) bool {
	v, ok := f.random[path]
	return !ok || v
}
func (f *fakeLibrary) Weight(path string) int { return f.weight[path] }

type fakeHistory struct {
	last map[string]time.Time
}

func (f *fakeHistory) LastPlayed(path string) (time.Time, bool) {
	t, ok := f.last[path]
	return t, ok
}

type fakeAdded struct {
	added map[string]time.Time
}

func (f *fakeAdded) AddedAt(path string) (time.Time, bool) {
	t, ok := f.added[path]
	return t, ok
}

func TestPickExcludesDisabledTracks(t *testing.T) {
	lib := &fakeLibrary{
		paths:  []string{"/a.mp3", "/b.mp3"},
		random: map[string]bool{"/b.mp3": false},
	}
	c := New(lib, &fakeHistory{last: map[string]time.Time{}}, nil, Options{})

	for i := 0; i < 20; i++ {
		got, err := c.Pick(nil)
		require.NoError(t, err)
		assert.Equal(t, "/a.mp3", got)
	}
}

func TestPickExcludesRecentlyPlayed(t *testing.T) {
	lib := &fakeLibrary{paths: []string{"/a.mp3", "/b.mp3"}}
	hist := &fakeHistory{last: map[string]time.Time{"/a.mp3": time.Now()}}
	c := New(lib, hist, nil, Options{ReplayMin: time.Hour})

	for i := 0; i < 20; i++ {
		got, err := c.Pick(nil)
		require.NoError(t, err)
		assert.Equal(t, "/b.mp3", got)
	}
}

func TestPickNoEligibleTracks(t *testing.T) {
	lib := &fakeLibrary{paths: []string{"/a.mp3"}, random: map[string]bool{"/a.mp3": false}}
	c := New(lib, &fakeHistory{last: map[string]time.Time{}}, nil, Options{})

	_, err := c.Pick(nil)
	assert.ErrorIs(t, err, ErrNoEligibleTracks)
}

func TestPickRetriesWhenChosenTrackVanished(t *testing.T) {
	lib := &fakeLibrary{paths: []string{"/a.mp3", "/b.mp3"}}
	c := New(lib, &fakeHistory{last: map[string]time.Time{}}, nil, Options{})

	got, err := c.Pick(func(path string) bool { return path == "/b.mp3" })
	require.NoError(t, err)
	assert.Equal(t, "/b.mp3", got)
}

func TestPickAllVanishedFails(t *testing.T) {
	lib := &fakeLibrary{paths: []string{"/a.mp3", "/b.mp3"}}
	c := New(lib, &fakeHistory{last: map[string]time.Time{}}, nil, Options{})

	_, err := c.Pick(func(path string) bool { return false })
	assert.ErrorIs(t, err, ErrNoEligibleTracks)
}

func TestNewBiasOverridesWeightForRecentTracks(t *testing.T) {
	lib := &fakeLibrary{
		paths:  []string{"/old.mp3", "/new.mp3"},
		weight: map[string]int{"/old.mp3": 1, "/new.mp3": 1},
	}
	added := &fakeAdded{added: map[string]time.Time{
		"/old.mp3": time.Now().Add(-48 * time.Hour),
		"/new.mp3": time.Now(),
	}}
	c := New(lib, &fakeHistory{last: map[string]time.Time{}}, added, Options{
		NewBias:    1_000_000,
		NewBiasAge: time.Hour,
	})

	candidates := c.eligible()
	byPath := map[string]int{}
	for _, cand := range candidates {
		byPath[cand.Path] = cand.Weight
	}
	assert.Equal(t, 1, byPath["/old.mp3"])
	assert.Equal(t, 1_000_000, byPath["/new.mp3"])
}

func TestLastPlayedStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastplayed.json")
	s, err := LoadLastPlayedStore(path)
	require.NoError(t, err)

	when := time.Now().Truncate(time.Second)
	require.NoError(t, s.Record("/a.mp3", when))

	reloaded, err := LoadLastPlayedStore(path)
	require.NoError(t, err)
	got, ok := reloaded.LastPlayed("/a.mp3")
	require.True(t, ok)
	assert.True(t, got.Equal(when))
}

func TestLastPlayedStoreMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")
	s, err := LoadLastPlayedStore(path)
	require.NoError(t, err)
	_, ok := s.LastPlayed("/a.mp3")
	assert.False(t, ok)
}
