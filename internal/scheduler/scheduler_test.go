package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/sink"
)

type fakeSink struct {
	mu   sync.Mutex
	data []byte
}

func (f *fakeSink) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.data = append(f.data, p...)
	f.mu.Unlock()
	return len(p), nil
}
func (f *fakeSink) Format() sink.Format { return sink.DefaultFormat }
func (f *fakeSink) Close() error        { return nil }
func (f *fakeSink) bytesWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// shPlayer builds a one-off PlayerTable whose single entry runs a shell
// script: a 16-byte zeroed PCM header followed by body as raw samples.
func shPlayer(t *testing.T, body string) *PlayerTable {
	t.Helper()
	script := "printf '\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0\\0" + body + "'"
	return NewPlayerTable([]PlayerEntry{
		{Glob: "*", Command: "/bin/sh", Args: []string{"-c", script}},
	})
}

func TestPlayEntryStreamsAndArchives(t *testing.T) {
	q := queue.New(10)
	entry, err := q.Play("/a.mp3", "alice")
	require.NoError(t, err)

	bus := eventbus.New()
	var playingSeen, completedSeen bool
	bus.Subscribe(eventbus.KindPlaying, func(eventbus.Event) { playingSeen = true })
	bus.Subscribe(eventbus.KindCompleted, func(eventbus.Event) { completedSeen = true })

	snk := &fakeSink{}
	s := New(q, nil, shPlayer(t, "abcdabcd"), snk, bus, Options{}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.playEntry(ctx, entry)

	assert.True(t, playingSeen)
	assert.True(t, completedSeen)
	assert.NotEmpty(t, snk.bytesWritten())

	recent := q.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, queue.StateOK, recent[0].State)
}

func TestPlayEntryNoPlayerArchivesFailed(t *testing.T) {
	q := queue.New(10)
	entry, err := q.Play("/unplayable.xyz", "alice")
	require.NoError(t, err)

	bus := eventbus.New()
	snk := &fakeSink{}
	players := NewPlayerTable(nil) // no entries match anything
	s := New(q, nil, players, snk, bus, Options{}, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.playEntry(ctx, entry)

	recent := q.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, queue.StateFailed, recent[0].State)
}

func TestSchedulerSetPlayingPublishesStateEvent(t *testing.T) {
	q := queue.New(10)
	bus := eventbus.New()
	var got string
	bus.Subscribe(eventbus.KindState, func(e eventbus.Event) {
		if len(e.Args) > 0 {
			got = e.Args[0]
		}
	})
	s := New(q, nil, NewPlayerTable(nil), &fakeSink{}, bus, Options{}, slog.Default())

	s.SetPlaying(false)
	assert.Equal(t, eventbus.StateDisablePlay, got)

	s.SetPlaying(true)
	assert.Equal(t, eventbus.StateEnablePlay, got)
}

func TestMixerVolumeClamped(t *testing.T) {
	m := NewMixer()
	m.SetVolume(150, -10)
	left, right := m.Volume()
	assert.Equal(t, 100, left)
	assert.Equal(t, 0, right)
}

func TestMixerApplyScalesSamples(t *testing.T) {
	m := NewMixer()
	m.SetVolume(50, 50)

	buf := []byte{0x10, 0x00, 0x10, 0x00} // one stereo frame, both channels = 16
	m.Apply(buf, 2)

	assert.Equal(t, byte(0x08), buf[0])
	assert.Equal(t, byte(0x08), buf[2])
}

func TestMixerApplyNoopAtFullVolume(t *testing.T) {
	m := NewMixer()
	buf := []byte{0x10, 0x00, 0x20, 0x00}
	orig := append([]byte(nil), buf...)
	m.Apply(buf, 2)
	assert.Equal(t, orig, buf)
}

func TestPlayerTableResolveMatchesGlob(t *testing.T) {
	pt := NewPlayerTable([]PlayerEntry{
		{Glob: "*.ogg", Command: "disorder-decode-ogg"},
		{Glob: "*.mp3", Command: "disorder-decode-mp3"},
	})

	cmd, args, err := pt.Resolve("/music/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "disorder-decode-mp3", cmd)
	assert.Equal(t, []string{"/music/song.mp3"}, args)
}

func TestPlayerTableResolveNoMatch(t *testing.T) {
	pt := NewPlayerTable([]PlayerEntry{{Glob: "*.ogg", Command: "x"}})
	_, _, err := pt.Resolve("/music/song.wav")
	assert.Error(t, err)
}
