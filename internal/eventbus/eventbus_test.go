package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesSubscribedHandler(t *testing.T) {
	b := New()
	var got Event
	var mu sync.Mutex
	b.Subscribe(KindPlaying, func(e Event) {
		mu.Lock()
		got = e
		mu.Unlock()
	})

	b.Publish(Event{Kind: KindPlaying, Args: []string{"id1", "/a.mp3"}})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, KindPlaying, got.Kind)
	assert.Equal(t, []string{"id1", "/a.mp3"}, got.Args)
}

func TestPublishIgnoresOtherKinds(t *testing.T) {
	b := New()
	called := false
	b.Subscribe(KindPlaying, func(Event) { called = true })

	b.Publish(Event{Kind: KindScratched})
	assert.False(t, called)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	h := b.Subscribe(KindQueue, func(Event) { calls++ })

	b.Publish(Event{Kind: KindQueue})
	b.Cancel(h)
	b.Publish(Event{Kind: KindQueue})

	assert.Equal(t, 1, calls)
}

func TestMultipleSubscribersAllInvoked(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	for i := 0; i < 3; i++ {
		b.Subscribe(KindMoved, func(Event) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	b.Publish(Event{Kind: KindMoved})
	assert.Equal(t, 3, count)
}

func TestLogStreamDeliversEncodedLine(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var lines []string
	ls := NewLogStream(b, func(line string) error {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return nil
	}, func() error { return nil })
	defer ls.Close()

	b.Publish(Event{Kind: KindPlaying, Args: []string{"id1", "has space"}})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "playing")
	assert.Contains(t, lines[0], `"has space"`)
}

func TestLogStreamCloseIsIdempotent(t *testing.T) {
	b := New()
	ls := NewLogStream(b, func(string) error { return nil }, func() error { return nil })
	ls.Close()
	assert.NotPanics(t, func() { ls.Close() })
}

func TestHexMicrosIsLowercaseHex(t *testing.T) {
	s := hexMicros(time.Now())
	for _, r := range s {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}
